package service

import "errors"

var (
	// ErrIncidentNotFound - инцидента с таким id нет
	ErrIncidentNotFound = errors.New("incident not found")
	// ErrIncidentNotActive - действие над закрытым (resolved/cancelled) инцидентом
	ErrIncidentNotActive = errors.New("incident is not active")
	// ErrInvalidTransition - попытка перехода из терминального статуса
	ErrInvalidTransition = errors.New("invalid incident status transition")
)
