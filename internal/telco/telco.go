// Package telco knows the Nigerian mobile networks a USSD dialog can arrive
// through: their identifiers, carrier network codes and number prefixes.
package telco

import (
	"errors"
	"strings"
)

// Provider identifies a mobile network operator.
type Provider string

const (
	MTN     Provider = "mtn"
	Airtel  Provider = "airtel"
	Glo     Provider = "glo"
	NineMob Provider = "9mobile"
)

// ErrUnknownProvider is returned when a provider name or network code is not recognised.
var ErrUnknownProvider = errors.New("unknown provider")

// ErrInvalidPhone is returned for numbers that are not Nigerian mobile numbers.
var ErrInvalidPhone = errors.New("invalid phone number")

// All lists every supported provider in menu order.
var All = []Provider{MTN, Airtel, Glo, NineMob}

// Carrier relays report the MCC+MNC of the originating network.
var networkCodes = map[string]Provider{
	"62130": MTN,
	"62120": Airtel,
	"62150": Glo,
	"62160": NineMob,
}

// Four-digit local prefixes per operator.
var prefixes = map[string]Provider{
	"0703": MTN, "0706": MTN, "0803": MTN, "0806": MTN, "0810": MTN, "0813": MTN,
	"0814": MTN, "0816": MTN, "0903": MTN, "0906": MTN, "0913": MTN, "0916": MTN,
	"0701": Airtel, "0708": Airtel, "0802": Airtel, "0808": Airtel, "0812": Airtel,
	"0901": Airtel, "0902": Airtel, "0904": Airtel, "0907": Airtel, "0912": Airtel,
	"0705": Glo, "0805": Glo, "0807": Glo, "0811": Glo, "0815": Glo, "0905": Glo, "0915": Glo,
	"0809": NineMob, "0817": NineMob, "0818": NineMob, "0908": NineMob, "0909": NineMob,
}

// ParseProvider accepts a provider name (any case) or a carrier network code.
func ParseProvider(v string) (Provider, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if p, ok := networkCodes[v]; ok {
		return p, nil
	}
	switch v {
	case "mtn":
		return MTN, nil
	case "airtel":
		return Airtel, nil
	case "glo", "globacom":
		return Glo, nil
	case "9mobile", "etisalat":
		return NineMob, nil
	}
	return "", ErrUnknownProvider
}

// String implements fmt.Stringer.
func (p Provider) String() string { return string(p) }

// Label is the display name shown on USSD screens.
func (p Provider) Label() string {
	switch p {
	case MTN:
		return "MTN"
	case Airtel:
		return "Airtel"
	case Glo:
		return "Glo"
	case NineMob:
		return "9mobile"
	}
	return string(p)
}

// NormalizePhone converts +234XXXXXXXXXX, 234XXXXXXXXXX and 0XXXXXXXXXX forms
// into the eleven digit local form.
func NormalizePhone(raw string) (string, error) {
	s := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "+")
	if strings.HasPrefix(s, "234") && len(s) == 13 {
		s = "0" + s[3:]
	}
	if len(s) != 11 || s[0] != '0' {
		return "", ErrInvalidPhone
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", ErrInvalidPhone
		}
	}
	switch s[1] {
	case '7', '8', '9':
	default:
		return "", ErrInvalidPhone
	}
	return s, nil
}

// Detect returns the operator owning a normalized local number.
func Detect(phone string) (Provider, bool) {
	if len(phone) < 4 {
		return "", false
	}
	p, ok := prefixes[phone[:4]]
	return p, ok
}
