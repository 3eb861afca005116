package models

// Представления экранов консоли

// SessionView - состояние сессии для экрана логина
type SessionView struct {
	Authenticated bool   `json:"authenticated"`
	Message       string `json:"message,omitempty"`
	Redirect      string `json:"redirect,omitempty"`
}

// QueryView - состояние одного запроса дашборда (data/loading/error)
type QueryView struct {
	Data    interface{} `json:"data,omitempty"`
	Loading bool        `json:"loading"`
	Error   string      `json:"error,omitempty"`
}

// DashboardQuery - параметры дашборда
type DashboardQuery struct {
	AccountType string `json:"accountType"`
	Symbol      string `json:"symbol"`
	Category    string `json:"category"`
}

// WithDefaults подставляет значения по умолчанию для пустых параметров
func (q DashboardQuery) WithDefaults() DashboardQuery {
	if q.AccountType == "" {
		q.AccountType = DefaultAccountType
	}
	if q.Symbol == "" {
		q.Symbol = DefaultSymbol
	}
	if q.Category == "" {
		q.Category = DefaultCategory
	}
	return q
}

// DashboardView - три независимых запроса дашборда
type DashboardView struct {
	Query      DashboardQuery `json:"query"`
	KeyInfo    QueryView      `json:"keyInfo"`
	Balances   QueryView      `json:"balances"`
	OpenOrders QueryView      `json:"openOrders"`
}
