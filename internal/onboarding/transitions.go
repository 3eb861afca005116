package onboarding

// Ключи состояний в таблице переходов
const (
	KeyLoading          = "loading"
	KeyAlreadyOnboarded = "already_onboarded"
	KeyNotTested        = "editing:not_tested"
	KeyTesting          = "editing:testing"
	KeyValid            = "editing:valid"
	KeyInvalid          = "editing:invalid"
	KeySaveInFlight     = "editing:save_in_flight"
	KeySaveFailed       = "editing:save_failed"
)

// ValidTransitions определяет допустимые переходы контроллера.
//
// В already_onboarded можно попасть только из loading (сервис сообщил о ключах)
// или из save_in_flight (сохранение ok=true). Выйти из него - только через Refresh.
var ValidTransitions = map[string][]string{
	KeyLoading:          {KeyLoading, KeyAlreadyOnboarded, KeyNotTested},
	KeyAlreadyOnboarded: {KeyLoading},
	KeyNotTested:        {KeyTesting, KeySaveInFlight, KeyLoading},
	KeyTesting:          {KeyValid, KeyInvalid},
	KeyValid:            {KeyTesting, KeySaveInFlight, KeyLoading},
	KeyInvalid:          {KeyTesting, KeySaveInFlight, KeyLoading},
	KeySaveInFlight:     {KeyAlreadyOnboarded, KeySaveFailed},
	KeySaveFailed:       {KeyTesting, KeySaveInFlight, KeyLoading},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StateInfo возвращает описание состояния для UI
func StateInfo(key string) string {
	switch key {
	case KeyLoading:
		return "Loading onboarding state"
	case KeyAlreadyOnboarded:
		return "Testnet credentials saved"
	case KeyNotTested:
		return "Enter API key and secret"
	case KeyTesting:
		return "Testing credentials..."
	case KeyValid:
		return "Credentials valid"
	case KeyInvalid:
		return "Credentials rejected"
	case KeySaveInFlight:
		return "Saving credentials..."
	case KeySaveFailed:
		return "Save failed"
	default:
		return "Unknown state"
	}
}
