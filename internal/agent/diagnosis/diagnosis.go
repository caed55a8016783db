// Package diagnosis classifies a customer's problem from their postcode.
package diagnosis

import (
	"context"
	"strings"
)

// Diagnosis results written to the diag_result state field.
const (
	Outage      = "outage"
	DeviceIssue = "device_issue"
)

// DefaultOutagePostCode is the single postcode with a known outage.
const DefaultOutagePostCode = "250601"

// Detector decides whether a postcode is affected by a network outage.
type Detector interface {
	Diagnose(ctx context.Context, postCode string) string
}

// FixedDetector reports an outage for a fixed set of postcodes and a device
// issue for everything else. Matching is exact.
type FixedDetector struct {
	outages map[string]struct{}
}

// NewFixedDetector returns a detector for codes. With no codes it uses
// DefaultOutagePostCode. Blank codes are ignored.
func NewFixedDetector(codes ...string) *FixedDetector {
	d := &FixedDetector{outages: make(map[string]struct{})}
	for _, code := range codes {
		if strings.TrimSpace(code) == "" {
			continue
		}
		d.outages[code] = struct{}{}
	}
	if len(d.outages) == 0 {
		d.outages[DefaultOutagePostCode] = struct{}{}
	}
	return d
}

// Diagnose implements Detector. It never fails.
func (d *FixedDetector) Diagnose(_ context.Context, postCode string) string {
	if _, ok := d.outages[postCode]; ok {
		return Outage
	}
	return DeviceIssue
}
