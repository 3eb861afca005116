package onboarding

import "fmt"

// Phase - экран контроллера онбординга
type Phase string

const (
	PhaseLoading          Phase = "loading"
	PhaseAlreadyOnboarded Phase = "already_onboarded"
	PhaseEditing          Phase = "editing"
)

// Outcome - результат проверки/сохранения ключей в режиме редактирования
type Outcome string

const (
	OutcomeNotTested    Outcome = "not_tested"
	OutcomeTesting      Outcome = "testing"
	OutcomeValid        Outcome = "valid"
	OutcomeInvalid      Outcome = "invalid"
	OutcomeSaveInFlight Outcome = "save_in_flight"
	OutcomeSaved        Outcome = "saved"
	OutcomeSaveFailed   Outcome = "save_failed"
)

// Presence - есть ли у пользователя сохраненные ключи (по данным сервиса)
type Presence int

const (
	PresenceUnknown Presence = iota
	PresencePresent
	PresenceAbsent
)

func (p Presence) String() string {
	switch p {
	case PresencePresent:
		return "present"
	case PresenceAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// MarshalText - presence в JSON строкой
func (p Presence) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText разбирает presence из строки
func (p *Presence) UnmarshalText(text []byte) error {
	switch string(text) {
	case "present":
		*p = PresencePresent
	case "absent":
		*p = PresenceAbsent
	case "unknown", "":
		*p = PresenceUnknown
	default:
		return fmt.Errorf("unknown presence %q", text)
	}
	return nil
}

// Сообщения пользователю
const (
	MsgLoading          = "Loading..."
	MsgLoadFailed       = "Could not load onboarding state."
	MsgAlreadySaved     = "Testnet credentials are already saved."
	MsgTesting          = "Testing..."
	MsgValid            = "OK! Credentials valid."
	MsgTestCallFailed   = "Error testing credentials."
	MsgSaving           = "Saving..."
	MsgSaved            = "Saved!"
	MsgSaveRejected     = "Save failed."
	MsgSaveCallFailed   = "Error saving credentials."
	ReasonRequestFailed = "request failed"
)

// State - снимок состояния контроллера
//
// Outcome заполнен в PhaseEditing; в PhaseAlreadyOnboarded он равен
// OutcomeSaved, если пользователь только что сохранил ключи.
type State struct {
	Phase     Phase    `json:"phase"`
	Outcome   Outcome  `json:"outcome,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Presence  Presence `json:"presence"`
	Message   string   `json:"message,omitempty"`
	LoadError string   `json:"loadError,omitempty"`
	Mounted   bool     `json:"mounted"`
}

// Key - ключ состояния в таблице переходов
func (s State) Key() string {
	if s.Phase == PhaseEditing {
		return string(s.Phase) + ":" + string(s.Outcome)
	}
	return string(s.Phase)
}

// Busy - идет проверка или сохранение
func (s State) Busy() bool {
	return s.Phase == PhaseEditing && (s.Outcome == OutcomeTesting || s.Outcome == OutcomeSaveInFlight)
}

// CanSubmit - форма ключей доступна для Test/Save
func (s State) CanSubmit() bool {
	return s.Mounted && s.Phase == PhaseEditing && !s.Busy()
}

func loadingState() State {
	return State{Phase: PhaseLoading, Presence: PresenceUnknown, Message: MsgLoading}
}

func editing(outcome Outcome, reason, message string) State {
	return State{Phase: PhaseEditing, Outcome: outcome, Reason: reason, Presence: PresenceAbsent, Message: message}
}

func alreadyOnboarded(outcome Outcome, message string) State {
	return State{Phase: PhaseAlreadyOnboarded, Outcome: outcome, Presence: PresencePresent, Message: message}
}
