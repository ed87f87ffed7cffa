package domain

// Product — товар каталога, доступный ядру только на чтение.
// Каталогом владеет внешний сервис; здесь нужны цена и флаг доступности.
type Product struct {
	ID         string
	Name       string
	PriceMinor int64
	Available  bool
}

// User — покупатель из внешнего справочника пользователей.
type User struct {
	ID    string
	Name  string
	Email string
}
