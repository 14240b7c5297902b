package provider

import (
	"errors"
	"strings"
)

var ErrProviderNotSupported = errors.New("provider is not supported")

type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	items := make(map[string]Gateway, len(gateways))
	for _, g := range gateways {
		items[g.Code()] = g
	}
	return &Registry{gateways: items}
}

func (r *Registry) Get(code string) (Gateway, error) {
	gateway, ok := r.gateways[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return nil, ErrProviderNotSupported
	}
	return gateway, nil
}
