// Package wire holds the low-level primitives shared by the frame codecs:
// the length/field [Validator] every parser reports into, and the one's
// complement checksum used by the IPv4 header.
package wire

import "errors"

// Validator accumulates errors found while validating a frame's size and
// field consistency. The zero value is ready to use. Unlike returning the
// first error encountered, a Validator lets ValidateSize-style methods keep
// checking every field and report everything wrong with a frame at once.
type Validator struct {
	accum []error
}

// AddError records err. err must be non-nil.
func (v *Validator) AddError(err error) {
	if err == nil {
		panic("wire: AddError called with nil error")
	}
	v.accum = append(v.accum, err)
}

// HasError reports whether any error has been recorded since the last Reset.
func (v *Validator) HasError() bool {
	return len(v.accum) != 0
}

// Err returns the accumulated errors joined with [errors.Join], or nil if
// none were recorded.
func (v *Validator) Err() error {
	switch len(v.accum) {
	case 0:
		return nil
	case 1:
		return v.accum[0]
	default:
		return errors.Join(v.accum...)
	}
}

// ErrPop returns Err and resets the validator for reuse.
func (v *Validator) ErrPop() error {
	err := v.Err()
	v.Reset()
	return err
}

// Reset clears all recorded errors, making v ready for reuse.
func (v *Validator) Reset() {
	v.accum = v.accum[:0]
}
