package license

import "context"

// TestFeature is the only feature the dummy backend licenses.
const TestFeature = "test_licensed_feature"

// ReasonNotLicensed is the denial reason for unknown features.
const ReasonNotLicensed = "Feature not licensed"

// Dummy licenses TestFeature and denies everything else. Check-in always
// succeeds.
type Dummy struct{}

// NewDummy creates a dummy backend.
func NewDummy() *Dummy { return &Dummy{} }

// CheckoutFeature grants TestFeature only.
func (*Dummy) CheckoutFeature(_ context.Context, feature string) (bool, string, error) {
	if feature == TestFeature {
		return true, "", nil
	}
	return false, ReasonNotLicensed, nil
}

// CheckinFeature always succeeds.
func (*Dummy) CheckinFeature(context.Context, string) (bool, string, error) {
	return true, "", nil
}

// Close does nothing.
func (*Dummy) Close() error { return nil }

var _ Backend = (*Dummy)(nil)
