package exitcode

const (
	Success          = 0
	UsageError       = 1
	ValidationError  = 2
	DBConnError      = 3
	LoadError        = 4
	ModelUnavailable = 5
	TrainingError    = 6
	NotFound         = 7
	PartialSuccess   = 8
)
