// Package twofa manages per-user two-factor methods.
//
// A method is a delivery channel (an email address, a phone number, ...)
// paired with its own TOTP secret. Methods start disabled and become enabled
// once the user proves possession by returning a token that was sent to the
// channel.
//
// # Overview
//
// The package provides:
//   - TwoFaService: add, enable, disable, remove, list and send operations
//   - TotpProvider: TOTP primitives backed by pquerna/otp or xlzd/gotp
//   - Registry: delivery handlers keyed by method type
//   - MethodRepository: PostgreSQL, Redis, file and in-memory storage
//
// # Basic Usage
//
//	import "github.com/tendant/simple-idm-twofa/pkg/twofa"
//
//	registry := twofa.NewRegistry()
//	twofa.RegisterNotifierHandlers(registry, notificationManager)
//
//	repo, err := twofa.NewMethodRepository("postgres", twofa.RepositoryConfig{DB: pool})
//	if err != nil {
//		return err
//	}
//
//	service := twofa.NewTwoFaService(repo, registry, twofa.NewPquernaProvider(),
//		twofa.WithWindow(2),
//		twofa.WithDeliveryTimeout(30*time.Second),
//	)
//
// # Method Lifecycle
//
//	// Add an email method and send the first token to it
//	id, err := service.AddMethod(ctx, user, twofa.MethodData{Type: "email", Value: "alice@example.com"}, true)
//
//	// The user types the token they received
//	err = service.EnableMethod(ctx, user, id, token)
//
//	// Later logins ask for a fresh token
//	delivered, err := service.SendToken(ctx, user, id)
//	valid, err := service.CheckToken(ctx, user, id, tokenFromUser)
//
//	// Disable keeps the secret, remove deletes it
//	err = service.DisableMethod(ctx, user, id, false)
//	err = service.DisableMethod(ctx, user, id, true)
//
// AddMethod returns the id as soon as the method is stored. If delivery then
// fails the error is returned together with the id and the method stays
// stored but unsent.
//
// Disabling does not require a token. Callers should only expose it to an
// already authenticated session.
//
// # Delivery Handlers
//
// Any function matching DeliveryHandler can be registered for a type. The
// first registration for a type is the one used:
//
//	registry.Register("webhook", func(ctx context.Context, user twofa.User, token string, m twofa.MethodData) (bool, error) {
//		return postToken(ctx, m.Value, token)
//	})
//
// Handler calls are bounded by the delivery timeout; running out of time
// counts as a failed delivery.
//
// # Errors
//
// All failures are *errors.Error values from pkg/errors and can be compared
// with errors.Is against the sentinels in this package, for example
// ErrDuplicateMethod or ErrNoHandlerForType.
//
// # Related Packages
//
//   - pkg/notification - email and SMS delivery
//   - pkg/ratelimit - send throttling
//   - pkg/twofa/api - HTTP handlers
//   - pkg/twofa/migrations - PostgreSQL schema
package twofa
