package triage

import "fmt"

// FalseAlertError - телеметрия отклонена фильтром ложных срабатываний
type FalseAlertError struct {
	Reason string
}

func (e *FalseAlertError) Error() string {
	return fmt.Sprintf("false alert: %s", e.Reason)
}
