package constants

// StepStatus is the outcome of one step in a sequential batch.
type StepStatus string

const (
	StepStatusOK      StepStatus = "OK"      // committed server-side
	StepStatusFailed  StepStatus = "FAILED"  // the step that stopped the batch
	StepStatusSkipped StepStatus = "SKIPPED" // never attempted
)

// ReceiptStatus is the reconciliation state of a receipt.
type ReceiptStatus string

const (
	ReceiptStatusClean      ReceiptStatus = "CLEAN"
	ReceiptStatusMismatched ReceiptStatus = "MISMATCHED"
	ReceiptStatusSuggested  ReceiptStatus = "SUGGESTED"
)
