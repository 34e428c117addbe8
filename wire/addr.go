package wire

import "strconv"

// AppendIPv4 appends the dotted-quad text representation of ip to dst, e.g.
// "192.168.1.1".
func AppendIPv4(dst []byte, ip [4]byte) []byte {
	for i, octet := range ip {
		if i != 0 {
			dst = append(dst, '.')
		}
		dst = strconv.AppendUint(dst, uint64(octet), 10)
	}
	return dst
}

// IPv4String returns the dotted-quad text representation of ip.
func IPv4String(ip [4]byte) string {
	return string(AppendIPv4(nil, ip))
}
