package provider

import (
	"fmt"
	"sort"

	"github.com/spooky-finn/marketsync/domain"
)

// APIResolver maps a provider name to its stream api.
type APIResolver struct {
	apis map[string]domain.ProviderStreamAPI
}

func NewAPIResolver(apis map[string]domain.ProviderStreamAPI) *APIResolver {
	return &APIResolver{apis: apis}
}

func (a *APIResolver) StreamAPI(provider string) (domain.ProviderStreamAPI, error) {
	api, ok := a.apis[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
	return api, nil
}

func (a *APIResolver) Providers() []string {
	names := make([]string, 0, len(a.apis))
	for name := range a.apis {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *APIResolver) Close() {
	for _, api := range a.apis {
		api.Close()
	}
}
