package payments

import (
	"context"

	"github.com/google/uuid"

	"github.com/congo-pay/ussd_gateway/internal/telco"
)

// AirtimeVendor represents a connector to a carrier's airtime distribution API.
type AirtimeVendor interface {
	TopUp(ctx context.Context, req TopUpRequest) (Receipt, error)
}

// Biller represents a connector to a bill aggregator.
type Biller interface {
	Pay(ctx context.Context, req BillRequest) (Receipt, error)
}

// TopUpRequest carries the details a vendor needs to credit airtime.
type TopUpRequest struct {
	Reference string
	Phone     string
	Network   telco.Provider
	Amount    int64
}

// BillRequest carries the details a biller needs to settle a bill.
type BillRequest struct {
	Reference string
	BillType  BillType
	MeterID   string
	Amount    int64
}

// Receipt captures the vendor's acknowledgement.
type Receipt struct {
	Reference string
	Status    string
}

// StaticVendor simulates a vendor that approves every top-up.
type StaticVendor struct{}

// TopUp approves the request with a synthetic reference.
func (StaticVendor) TopUp(_ context.Context, _ TopUpRequest) (Receipt, error) {
	return Receipt{Reference: uuid.NewString(), Status: "approved"}, nil
}

// StaticBiller simulates a biller that approves every payment.
type StaticBiller struct{}

// Pay approves the request with a synthetic reference.
func (StaticBiller) Pay(_ context.Context, _ BillRequest) (Receipt, error) {
	return Receipt{Reference: uuid.NewString(), Status: "approved"}, nil
}

// StaticVendors registers a StaticVendor for each named network. Unknown names
// are skipped.
func StaticVendors(networks []string) map[telco.Provider]AirtimeVendor {
	out := make(map[telco.Provider]AirtimeVendor, len(networks))
	for _, name := range networks {
		p, err := telco.ParseProvider(name)
		if err != nil {
			continue
		}
		out[p] = StaticVendor{}
	}
	return out
}
