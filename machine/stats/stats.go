// Package stats counts the translation events of a machine and prints them at
// shutdown.
package stats

import (
	"fmt"
	"io"
)

// Statistics holds the translation counters of one machine.
type Statistics struct {
	NumAddressTranslation uint64 `json:"num_address_translation"`
	NumTLBMiss            uint64 `json:"num_tlb_miss"`
	NumPageFaults         uint64 `json:"num_page_faults"`

	// ReportTLB adds the TLB miss line to Print. Set it on machines that have
	// a TLB.
	ReportTLB bool `json:"-"`
}

// New creates zeroed statistics.
func New(reportTLB bool) *Statistics {
	return &Statistics{ReportTLB: reportTLB}
}

// CountAddressTranslation counts one translation attempt.
func (s *Statistics) CountAddressTranslation() {
	s.NumAddressTranslation++
}

// CountTLBMiss counts one TLB lookup that found no valid entry.
func (s *Statistics) CountTLBMiss() {
	s.NumTLBMiss++
}

// CountPageFault counts one page that was not resident when it was needed.
func (s *Statistics) CountPageFault() {
	s.NumPageFaults++
}

// TLBMissRate returns TLB misses per translation, in percent.
func (s *Statistics) TLBMissRate() float64 {
	return s.percentOfTranslations(s.NumTLBMiss)
}

// PageFaultRate returns page faults per translation, in percent.
func (s *Statistics) PageFaultRate() float64 {
	return s.percentOfTranslations(s.NumPageFaults)
}

func (s *Statistics) percentOfTranslations(n uint64) float64 {
	if s.NumAddressTranslation == 0 {
		return 0
	}

	return float64(n) / float64(s.NumAddressTranslation) * 100
}

// Print writes the counters in the format of the shutdown report.
func (s *Statistics) Print(w io.Writer) {
	if s.ReportTLB {
		fmt.Fprintf(w, "TLB miss number: %d, miss rate: %.6g%%\n",
			s.NumTLBMiss, s.TLBMissRate())
	}

	if s.NumAddressTranslation != 0 {
		fmt.Fprintf(w, "Page fault number:%d, Page fault rate:%.6g%%\n",
			s.NumPageFaults, s.PageFaultRate())
	}
}
