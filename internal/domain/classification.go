package domain

const (
	WarningThreshold = 3
	WarningPenalty   = 50
	ApprovalReward   = 50
)

type ClassificationResult struct {
	IsValid           bool     `json:"isValid"`
	IsAiGenerated     bool     `json:"isAiGenerated"`
	IsSevereViolation bool     `json:"isSevereViolation"`
	Category          Category `json:"category"`
	Description       string   `json:"description"`
	WarningCount      int      `json:"warningCount"`
	PointsDeducted    bool     `json:"pointsDeducted"`

	// Err is set only when the classifier could not produce a judgement.
	Err error `json:"-"`
}

func (r ClassificationResult) Failed() bool {
	return r.Err != nil
}
