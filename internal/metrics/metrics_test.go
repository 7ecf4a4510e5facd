package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordParse(t *testing.T) {
	success := FilesParsed.WithLabelValues("items", "csv", OutcomeSuccess)
	failure := FilesParsed.WithLabelValues("items", "csv", OutcomeFailure)
	records := RecordsParsed.WithLabelValues("items", "csv")

	beforeOK := testutil.ToFloat64(success)
	beforeFail := testutil.ToFloat64(failure)
	beforeRecords := testutil.ToFloat64(records)

	RecordParse("items", "csv", 4, true)
	RecordParse("items", "csv", 0, false)

	if got := testutil.ToFloat64(success) - beforeOK; got != 1 {
		t.Errorf("success delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(failure) - beforeFail; got != 1 {
		t.Errorf("failure delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(records) - beforeRecords; got != 4 {
		t.Errorf("records delta = %v, want 4", got)
	}
}

func TestRecordUpload_FailFast(t *testing.T) {
	ok := RecordsSubmitted.WithLabelValues("bill-of-material", OutcomeSuccess)
	failed := RecordsSubmitted.WithLabelValues("bill-of-material", OutcomeFailure)
	beforeOK := testutil.ToFloat64(ok)
	beforeFailed := testutil.ToFloat64(failed)

	RecordUpload("bill-of-material", 2, 1, 150*time.Millisecond, false)

	if got := testutil.ToFloat64(ok) - beforeOK; got != 2 {
		t.Errorf("submitted delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(failed) - beforeFailed; got != 1 {
		t.Errorf("failed delta = %v, want 1", got)
	}
}
