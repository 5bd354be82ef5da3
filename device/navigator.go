package device

import (
	"context"
	"errors"
	"log"
)

// LogNavigator records deep-links in the process log instead of opening them.
type LogNavigator struct {
	Prefix string
}

// Navigate logs link.
func (n LogNavigator) Navigate(_ context.Context, link string) error {
	log.Printf("📲 %snavigate: %s", n.Prefix, link)
	return nil
}

// Navigators hands a link to every navigator in order. It fails only when
// all of them fail.
type Navigators []Navigator

// Navigate calls each navigator and joins their errors.
func (ns Navigators) Navigate(ctx context.Context, link string) error {
	if len(ns) == 0 {
		return nil
	}
	var errs []error
	for _, n := range ns {
		if err := n.Navigate(ctx, link); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(ns) {
		return errors.Join(errs...)
	}
	return nil
}
