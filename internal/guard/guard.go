// Package guard решает, можно ли показать защищенный экран.
//
// Решение вычисляется заново при каждой навигации и зависит только от
// наличия токена в сессии: выход действует немедленно.
package guard

// LoginPath - точка входа, куда отправляется неаутентифицированный пользователь
const LoginPath = "/login"

// AuthState - состояние аутентификации
type AuthState int

const (
	Unauthenticated AuthState = iota
	Authenticated
)

func (s AuthState) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// TokenReader - чтение текущего токена (реализуется session.Session)
type TokenReader interface {
	CurrentToken() (string, bool)
}

// Decision - результат проверки навигации
//
// Запрошенный адрес не сохраняется: после логина возврата на него нет.
type Decision struct {
	State       AuthState
	Allow       bool
	Destination string // что показывать при Allow
	Redirect    string // куда перейти при отказе
}

// StateOf определяет состояние по токену
func StateOf(tokens TokenReader) AuthState {
	if tokens == nil {
		return Unauthenticated
	}
	if _, ok := tokens.CurrentToken(); ok {
		return Authenticated
	}
	return Unauthenticated
}

// Check проверяет навигацию на защищенный destination
func Check(tokens TokenReader, destination string) Decision {
	if StateOf(tokens) == Authenticated {
		return Decision{State: Authenticated, Allow: true, Destination: destination}
	}
	return Decision{State: Unauthenticated, Redirect: LoginPath}
}
