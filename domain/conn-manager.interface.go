package domain

type ConnManager interface {
	StreamAPI(provider string) (ProviderStreamAPI, error)
	Providers() []string
}
