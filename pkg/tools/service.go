package tools

import (
	"context"
	"sync"
)

/*
Service is a local delegate a function can dispatch to.
*/
type Service interface {
	Invoke(ctx context.Context, arguments Arguments) (string, error)
}

/*
ServiceFunc adapts a plain function to the Service interface.
*/
type ServiceFunc func(ctx context.Context, arguments Arguments) (string, error)

func (fn ServiceFunc) Invoke(ctx context.Context, arguments Arguments) (string, error) {
	return fn(ctx, arguments)
}

/*
ServiceProvider resolves service names to delegates when a call is made.
*/
type ServiceProvider interface {
	Resolve(name string) (Service, bool)
}

/*
Services is a concurrent ServiceProvider backed by a map.
*/
type Services struct {
	services *sync.Map
}

func NewServices() *Services {
	return &Services{
		services: new(sync.Map),
	}
}

func (services *Services) Register(name string, service Service) {
	services.services.Store(name, service)
}

func (services *Services) Resolve(name string) (Service, bool) {
	service, ok := services.services.Load(name)

	if !ok {
		return nil, false
	}

	return service.(Service), true
}
