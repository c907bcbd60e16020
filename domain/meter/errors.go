package meter

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"switchd/openflow/ofp13"
)

// Error is a rejected meter-mod. It carries the OFPET_METER_MOD_FAILED
// code the switch answers with.
type Error struct {
	Code    uint16
	MeterID uint32
}

func (e *Error) Error() string {
	return fmt.Sprintf("meter %d: %s", e.MeterID, codeText(e.Code))
}

// Is matches on the code alone, so the sentinels below work with
// errors.Is regardless of the meter id.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrMeterExists  = &Error{Code: ofp13.OFPMMFC_METER_EXISTS}
	ErrInvalidMeter = &Error{Code: ofp13.OFPMMFC_INVALID_METER}
	ErrUnknownMeter = &Error{Code: ofp13.OFPMMFC_UNKNOWN_METER}
	ErrBadCommand   = &Error{Code: ofp13.OFPMMFC_BAD_COMMAND}
	ErrBadFlags     = &Error{Code: ofp13.OFPMMFC_BAD_FLAGS}
	ErrBadRate      = &Error{Code: ofp13.OFPMMFC_BAD_RATE}
	ErrBadBurst     = &Error{Code: ofp13.OFPMMFC_BAD_BURST}
	ErrBadBand      = &Error{Code: ofp13.OFPMMFC_BAD_BAND}
	ErrBadBandValue = &Error{Code: ofp13.OFPMMFC_BAD_BAND_VALUE}
	ErrOutOfMeters  = &Error{Code: ofp13.OFPMMFC_OUT_OF_METERS}
	ErrOutOfBands   = &Error{Code: ofp13.OFPMMFC_OUT_OF_BANDS}
)

func reject(base *Error, id uint32) error {
	return &Error{Code: base.Code, MeterID: id}
}

// CodeOf extracts the meter-mod-failed code from err.
func CodeOf(err error) (uint16, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

func codeText(code uint16) string {
	switch code {
	case ofp13.OFPMMFC_METER_EXISTS:
		return "meter exists"
	case ofp13.OFPMMFC_INVALID_METER:
		return "invalid meter id"
	case ofp13.OFPMMFC_UNKNOWN_METER:
		return "unknown meter"
	case ofp13.OFPMMFC_BAD_COMMAND:
		return "bad command"
	case ofp13.OFPMMFC_BAD_FLAGS:
		return "bad flags"
	case ofp13.OFPMMFC_BAD_RATE:
		return "bad rate"
	case ofp13.OFPMMFC_BAD_BURST:
		return "bad burst"
	case ofp13.OFPMMFC_BAD_BAND:
		return "bad band"
	case ofp13.OFPMMFC_BAD_BAND_VALUE:
		return "bad band value"
	case ofp13.OFPMMFC_OUT_OF_METERS:
		return "out of meters"
	case ofp13.OFPMMFC_OUT_OF_BANDS:
		return "out of bands"
	}
	return "unknown error"
}
