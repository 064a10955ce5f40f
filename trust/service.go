package trust

import (
	"fmt"
	"sort"
	"time"
)

// Trust service type and status identifiers from ETSI TS 119 612.
const (
	ServiceTypeCAQC    = "http://uri.etsi.org/TrstSvc/Svctype/CA/QC"
	ServiceTypeCAPKC   = "http://uri.etsi.org/TrstSvc/Svctype/CA/PKC"
	ServiceTypeTSAQTST = "http://uri.etsi.org/TrstSvc/Svctype/TSA/QTST"
	ServiceTypeTSA     = "http://uri.etsi.org/TrstSvc/Svctype/TSA"
	ServiceTypeOCSPQC  = "http://uri.etsi.org/TrstSvc/Svctype/Certstatus/OCSP/QC"

	StatusGranted          = "http://uri.etsi.org/TrstSvc/TrustedList/Svcstatus/granted"
	StatusWithdrawn        = "http://uri.etsi.org/TrstSvc/TrustedList/Svcstatus/withdrawn"
	StatusUnderSupervision = "http://uri.etsi.org/TrstSvc/TrustedList/Svcstatus/undersupervision"
	StatusAccredited       = "http://uri.etsi.org/TrstSvc/TrustedList/Svcstatus/accredited"
	StatusRevoked          = "http://uri.etsi.org/TrstSvc/TrustedList/Svcstatus/revoked"
)

// ServiceStatus is one period of a trust service's history.
type ServiceStatus struct {
	Type   string     `json:"type" cbor:"type"`
	Status string     `json:"status" cbor:"status"`
	Start  time.Time  `json:"start" cbor:"start"`
	End    *time.Time `json:"end,omitempty" cbor:"end,omitempty"`
}

func (s ServiceStatus) StartDate() time.Time { return s.Start }
func (s ServiceStatus) EndDate() *time.Time  { return s.End }

// TrustedService is a trusted-list entry a trust anchor stems from.
type TrustedService struct {
	ProviderName string          `json:"providerName" cbor:"providerName"`
	ServiceName  string          `json:"serviceName" cbor:"serviceName"`
	Statuses     []ServiceStatus `json:"statuses" cbor:"statuses"`

	history *TimeDependentValues[ServiceStatus]
}

// Build orders the status periods and checks that they do not overlap.
// It must be called before the service is shared.
func (s *TrustedService) Build() error {
	sorted := make([]ServiceStatus, len(s.Statuses))
	copy(sorted, s.Statuses)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.After(sorted[j].Start) })
	h, err := NewTimeDependentValues(sorted...)
	if err != nil {
		return fmt.Errorf("trusted service %q: %w", s.ServiceName, err)
	}
	s.history = h
	return nil
}

// History returns the status history, newest first.
func (s *TrustedService) History() *TimeDependentValues[ServiceStatus] {
	return s.history
}

// At returns the status valid at t.
func (s *TrustedService) At(t time.Time) (ServiceStatus, bool) {
	return s.history.Current(t)
}

// AcceptableUntil returns the latest time not after t at which the service
// had an accepted status. When the status at t is accepted, t is returned.
func (s *TrustedService) AcceptableUntil(t time.Time, accept func(ServiceStatus) bool) (time.Time, bool) {
	if cur, ok := s.At(t); ok && accept(cur) {
		return t, true
	}
	for _, st := range s.history.All() {
		if st.End == nil || st.End.After(t) || !accept(st) {
			continue
		}
		return *st.End, true
	}
	return time.Time{}, false
}
