package ledger

// StageSummary counts records per status variant for one stage.
type StageSummary struct {
	Stage      Stage `json:"stage" yaml:"stage"`
	Unset      int   `json:"unset" yaml:"unset"`
	InProgress int   `json:"in_progress" yaml:"in_progress"`
	Done       int   `json:"done" yaml:"done"`
	Empty      int   `json:"empty" yaml:"empty"`
	SubItems   int   `json:"sub_items" yaml:"sub_items"`
}

// Complete reports whether every record reached a terminal status.
func (s StageSummary) Complete() bool {
	return s.Unset == 0 && s.InProgress == 0
}

// Summary aggregates ledger progress across all stages.
type Summary struct {
	Records int            `json:"records" yaml:"records"`
	Stages  []StageSummary `json:"stages" yaml:"stages"`
}

// Complete reports whether every stage of every record is terminal.
func (s Summary) Complete() bool {
	for _, stage := range s.Stages {
		if !stage.Complete() {
			return false
		}
	}
	return true
}

// Summarize counts statuses per stage.
func Summarize(records []Record) Summary {
	stages := Stages()
	summary := Summary{Records: len(records), Stages: make([]StageSummary, len(stages))}
	for i, stage := range stages {
		summary.Stages[i].Stage = stage
	}
	for _, rec := range records {
		for i, stage := range stages {
			status := rec.Status(stage)
			switch status.Kind() {
			case KindInProgress:
				summary.Stages[i].InProgress++
			case KindDone:
				summary.Stages[i].Done++
				summary.Stages[i].SubItems += status.Len()
			case KindEmpty:
				summary.Stages[i].Empty++
			default:
				summary.Stages[i].Unset++
			}
		}
	}
	return summary
}
