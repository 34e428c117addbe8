package arp

import "github.com/cngai/router/ethernet"

// BuildRequest fills afrm's buffer with an ARP request for targetIP,
// originating from (senderHW, senderIP). The target hardware address field
// is left zeroed; the broadcast convention lives in the carrying Ethernet
// frame's destination address, which the caller sets separately.
func BuildRequest(afrm Frame, senderHW [ethernet.AddrLen]byte, senderIP, targetIP [4]byte) {
	afrm.ClearHeader()
	afrm.SetHardware(HTypeEthernet, ethernet.AddrLen)
	afrm.SetProtocol(ethernet.TypeIPv4, 4)
	afrm.SetOperation(OpRequest)
	*afrm.SenderHardwareAddr() = senderHW
	*afrm.SenderProtoAddr() = senderIP
	*afrm.TargetHardwareAddr() = [ethernet.AddrLen]byte{}
	*afrm.TargetProtoAddr() = targetIP
}
