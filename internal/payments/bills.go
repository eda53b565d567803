package payments

// BillType identifies a bill category offered on the bills menu.
type BillType string

const (
	BillElectricity BillType = "electricity"
	BillCableTV     BillType = "cable_tv"
	BillWater       BillType = "water"
	BillInternet    BillType = "internet"
)

// BillTypes lists bill categories in menu order.
var BillTypes = []BillType{BillElectricity, BillCableTV, BillWater, BillInternet}

// BillTypeFromOption maps a 1-based menu option to a bill type.
func BillTypeFromOption(option string) (BillType, bool) {
	if len(option) != 1 || option[0] < '1' || int(option[0]-'0') > len(BillTypes) {
		return "", false
	}
	return BillTypes[option[0]-'1'], true
}

// Label is the menu text for the bill type.
func (b BillType) Label() string {
	switch b {
	case BillElectricity:
		return "Electricity"
	case BillCableTV:
		return "Cable TV"
	case BillWater:
		return "Water"
	case BillInternet:
		return "Internet"
	default:
		return string(b)
	}
}

// AccountLabel is the prompt name for the customer identifier of the bill type.
func (b BillType) AccountLabel() string {
	switch b {
	case BillElectricity:
		return "meter number"
	case BillCableTV:
		return "smartcard number"
	default:
		return "account number"
	}
}
