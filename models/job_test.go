package models

import "testing"

// Jobs only move forward through the pipeline. A done job can be invoiced,
// but nothing walks backwards and no status repeats.
func TestJobStatusOrder_ForwardOnly(t *testing.T) {
	pipeline := []JobStatus{
		JobStatusPending,
		JobStatusScheduled,
		JobStatusInProgress,
		JobStatusDone,
		JobStatusInvoiced,
	}

	for i, from := range pipeline {
		for j, to := range pipeline {
			forward := jobStatusOrder[to] > jobStatusOrder[from]
			if forward != (j > i) {
				t.Fatalf("%s -> %s: expected forward=%v", from, to, j > i)
			}
		}
	}

	if jobStatusOrder[JobStatusDone] <= jobStatusOrder[JobStatusInProgress] {
		t.Fatal("done must rank above in_progress")
	}
	if jobStatusOrder[JobStatusPending] != 0 {
		t.Fatal("pending is the pipeline entry point")
	}
}
