package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"golang.org/x/text/language"

	"github.com/lumashop/api/internal/payments"
	"github.com/lumashop/api/internal/repositories"
)

var (
	// ErrUserInvalidInput indicates invalid profile, address, or payment method data.
	ErrUserInvalidInput = fmt.Errorf("user: %w", ErrInvalidInput)
	// ErrUserNotFound indicates the address or payment method does not exist.
	ErrUserNotFound = fmt.Errorf("user: %w", ErrNotFound)
	// ErrUserUnauthorized indicates the call has no signed-in user.
	ErrUserUnauthorized = fmt.Errorf("user: %w", ErrUnauthorized)
	// ErrUserConflict indicates a duplicate payment method.
	ErrUserConflict = fmt.Errorf("user: %w", ErrConflict)
	// ErrUserUnavailable indicates the payment provider could not be reached.
	ErrUserUnavailable = fmt.Errorf("user: %w", ErrUnavailable)
)

var (
	errUserIDRequired       = fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	errInvalidDisplayName   = fmt.Errorf("%w: name must be between 2 and 100 characters", ErrUserInvalidInput)
	errInvalidLanguageTag   = fmt.Errorf("%w: preferred language must be a BCP 47 tag", ErrUserInvalidInput)
	errPaymentTokenRequired = fmt.Errorf("%w: payment method token is required", ErrUserInvalidInput)
)

// PaymentMethodVerifier resolves a PSP token into display metadata. *payments.StripeVerifier satisfies it.
type PaymentMethodVerifier interface {
	Lookup(ctx context.Context, token string) (payments.PaymentMethodDetails, error)
}

type UserServiceDeps struct {
	Users           repositories.UserRepository
	Addresses       repositories.AddressRepository
	PaymentMethods  repositories.PaymentMethodRepository
	PaymentVerifier PaymentMethodVerifier
	UnitOfWork      repositories.UnitOfWork
	Clock           func() time.Time
	IDGenerator     func() string
}

type userService struct {
	users           repositories.UserRepository
	addresses       repositories.AddressRepository
	paymentMethods  repositories.PaymentMethodRepository
	paymentVerifier PaymentMethodVerifier
	unit            repositories.UnitOfWork
	clock           func() time.Time
	newID           func() string
}

// NewUserService wires dependencies into a concrete UserService implementation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	if deps.Addresses == nil {
		return nil, errors.New("user service: address repository is required")
	}
	if deps.PaymentMethods == nil {
		return nil, errors.New("user service: payment method repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &userService{
		users:           deps.Users,
		addresses:       deps.Addresses,
		paymentMethods:  deps.PaymentMethods,
		paymentVerifier: deps.PaymentVerifier,
		unit:            unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

// GetProfile returns the stored profile, seeding it from the caller's token claims on first access.
func (s *userService) GetProfile(ctx context.Context, actor *Actor) (UserProfile, error) {
	if !actor.authenticated() {
		return UserProfile{}, fmt.Errorf("%w: sign in required", ErrUserUnauthorized)
	}
	profile, err := s.users.FindByID(ctx, actor.UserID)
	if err == nil {
		return profile, nil
	}
	if !isNotFound(err) {
		return UserProfile{}, kindOf(err, "user")
	}

	now := s.clock()
	fresh := UserProfile{
		ID:        actor.UserID,
		Name:      strings.TrimSpace(actor.Name),
		Email:     strings.ToLower(strings.TrimSpace(actor.Email)),
		Roles:     []string{"user"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if actor.Admin {
		fresh.Roles = append(fresh.Roles, "admin")
	}
	if err := s.users.Save(ctx, fresh); err != nil {
		return UserProfile{}, kindOf(err, "user")
	}
	return fresh, nil
}

func (s *userService) UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error) {
	profile, err := s.GetProfile(ctx, cmd.Actor)
	if err != nil {
		return UserProfile{}, err
	}
	changed := false
	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if err := validateDisplayName(name); err != nil {
			return UserProfile{}, err
		}
		changed = changed || name != profile.Name
		profile.Name = name
	}
	if cmd.Phone != nil {
		phone := strings.TrimSpace(*cmd.Phone)
		changed = changed || phone != profile.Phone
		profile.Phone = phone
	}
	if cmd.PreferredLanguage != nil {
		tag, err := canonicaliseLanguageTag(*cmd.PreferredLanguage)
		if err != nil {
			return UserProfile{}, err
		}
		changed = changed || tag != profile.PreferredLanguage
		profile.PreferredLanguage = tag
	}
	if !changed {
		return profile, nil
	}
	profile.UpdatedAt = s.clock()
	if err := s.users.Save(ctx, profile); err != nil {
		return UserProfile{}, kindOf(err, "user")
	}
	return profile, nil
}

func (s *userService) ListAddresses(ctx context.Context, userID string) ([]Address, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errUserIDRequired
	}
	addresses, err := s.addresses.List(ctx, userID)
	if err != nil {
		return nil, kindOf(err, "user")
	}
	if addresses == nil {
		addresses = []Address{}
	}
	return addresses, nil
}

// SaveAddress creates or replaces an address. The first address, or one saved with MakeDefault,
// becomes the only default.
func (s *userService) SaveAddress(ctx context.Context, cmd SaveAddressCommand) (Address, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Address{}, errUserIDRequired
	}
	addr, err := sanitizeAddress(cmd.Address)
	if err != nil {
		return Address{}, err
	}

	var saved Address
	err = inTx(ctx, s.unit, "user", func(txCtx context.Context) error {
		existing, err := s.addresses.List(txCtx, userID)
		if err != nil {
			return kindOf(err, "user")
		}
		now := s.clock()
		if addr.ID == "" {
			addr.ID = s.newID()
			addr.CreatedAt = now
		} else {
			current, ok := findAddress(existing, addr.ID)
			if !ok {
				return fmt.Errorf("%w: address not found", ErrUserNotFound)
			}
			addr.CreatedAt = current.CreatedAt
			addr.IsDefault = current.IsDefault
		}
		addr.UpdatedAt = now
		if cmd.MakeDefault || !hasDefaultAddress(existing, addr.ID) {
			addr.IsDefault = true
		}

		if addr.IsDefault {
			for _, other := range demoteOthers(existing, addr.ID, addressDefault) {
				other.UpdatedAt = now
				if err := s.addresses.Save(txCtx, userID, other); err != nil {
					return kindOf(err, "user")
				}
			}
		}
		if err := s.addresses.Save(txCtx, userID, addr); err != nil {
			return kindOf(err, "user")
		}
		saved = addr
		return nil
	})
	if err != nil {
		return Address{}, err
	}
	return saved, nil
}

func (s *userService) SetDefaultAddress(ctx context.Context, userID, addressID string) (Address, error) {
	userID, addressID = strings.TrimSpace(userID), strings.TrimSpace(addressID)
	if userID == "" || addressID == "" {
		return Address{}, fmt.Errorf("%w: user id and address id are required", ErrUserInvalidInput)
	}
	var chosen Address
	err := inTx(ctx, s.unit, "user", func(txCtx context.Context) error {
		existing, err := s.addresses.List(txCtx, userID)
		if err != nil {
			return kindOf(err, "user")
		}
		target, ok := findAddress(existing, addressID)
		if !ok {
			return fmt.Errorf("%w: address not found", ErrUserNotFound)
		}
		now := s.clock()
		for _, other := range demoteOthers(existing, addressID, addressDefault) {
			other.UpdatedAt = now
			if err := s.addresses.Save(txCtx, userID, other); err != nil {
				return kindOf(err, "user")
			}
		}
		if !target.IsDefault {
			target.IsDefault = true
			target.UpdatedAt = now
			if err := s.addresses.Save(txCtx, userID, target); err != nil {
				return kindOf(err, "user")
			}
		}
		chosen = target
		return nil
	})
	if err != nil {
		return Address{}, err
	}
	return chosen, nil
}

// DeleteAddress removes an address; when it was the default the most recent remaining one takes over.
func (s *userService) DeleteAddress(ctx context.Context, userID, addressID string) error {
	userID, addressID = strings.TrimSpace(userID), strings.TrimSpace(addressID)
	if userID == "" || addressID == "" {
		return fmt.Errorf("%w: user id and address id are required", ErrUserInvalidInput)
	}
	return inTx(ctx, s.unit, "user", func(txCtx context.Context) error {
		existing, err := s.addresses.List(txCtx, userID)
		if err != nil {
			return kindOf(err, "user")
		}
		target, ok := findAddress(existing, addressID)
		if !ok {
			return fmt.Errorf("%w: address not found", ErrUserNotFound)
		}
		if err := s.addresses.Delete(txCtx, userID, addressID); err != nil {
			return kindOf(err, "user")
		}
		if !target.IsDefault {
			return nil
		}
		next, ok := mostRecent(existing, addressID, addressDefault, func(a Address) time.Time { return a.CreatedAt })
		if !ok {
			return nil
		}
		next.IsDefault = true
		next.UpdatedAt = s.clock()
		return kindOf(s.addresses.Save(txCtx, userID, next), "user")
	})
}

func (s *userService) ListPaymentMethods(ctx context.Context, userID string) ([]PaymentMethod, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errUserIDRequired
	}
	methods, err := s.paymentMethods.List(ctx, userID)
	if err != nil {
		return nil, kindOf(err, "user")
	}
	if methods == nil {
		methods = []PaymentMethod{}
	}
	return methods, nil
}

// AddPaymentMethod stores a PSP reference, verified with the PSP when a verifier is configured.
func (s *userService) AddPaymentMethod(ctx context.Context, cmd AddPaymentMethodCommand) (PaymentMethod, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return PaymentMethod{}, errUserIDRequired
	}
	token := strings.TrimSpace(cmd.Token)
	if token == "" {
		return PaymentMethod{}, errPaymentTokenRequired
	}
	provider := normaliseProvider(cmd.Provider)
	if provider == "" {
		provider = "stripe"
	}

	var details payments.PaymentMethodDetails
	if s.paymentVerifier != nil {
		meta, err := s.paymentVerifier.Lookup(ctx, token)
		switch {
		case errors.Is(err, payments.ErrVerifierDisabled):
		case errors.Is(err, payments.ErrProviderUnavailable):
			return PaymentMethod{}, fmt.Errorf("%w: payment provider unreachable, try again later", ErrUserUnavailable)
		case err != nil:
			return PaymentMethod{}, fmt.Errorf("%w: payment method could not be verified", ErrUserInvalidInput)
		default:
			details = meta
			if trimmed := strings.TrimSpace(meta.Token); trimmed != "" {
				token = trimmed
			}
		}
	}

	var saved PaymentMethod
	err := inTx(ctx, s.unit, "user", func(txCtx context.Context) error {
		existing, err := s.paymentMethods.List(txCtx, userID)
		if err != nil {
			return kindOf(err, "user")
		}
		for _, method := range existing {
			if method.Reference == token {
				return fmt.Errorf("%w: payment method already saved", ErrUserConflict)
			}
		}
		now := s.clock()
		method := PaymentMethod{
			ID:        s.newID(),
			Provider:  provider,
			Reference: token,
			Brand:     strings.TrimSpace(details.Brand),
			Last4:     strings.TrimSpace(details.Last4),
			ExpMonth:  details.ExpMonth,
			ExpYear:   details.ExpYear,
			IsDefault: cmd.MakeDefault || len(existing) == 0,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if method.IsDefault {
			for _, other := range demoteOthers(existing, method.ID, paymentMethodDefault) {
				other.UpdatedAt = now
				if err := s.paymentMethods.Save(txCtx, userID, other); err != nil {
					return kindOf(err, "user")
				}
			}
		}
		if err := s.paymentMethods.Save(txCtx, userID, method); err != nil {
			return kindOf(err, "user")
		}
		saved = method
		return nil
	})
	if err != nil {
		return PaymentMethod{}, err
	}
	return saved, nil
}

func (s *userService) SetDefaultPaymentMethod(ctx context.Context, userID, methodID string) (PaymentMethod, error) {
	userID, methodID = strings.TrimSpace(userID), strings.TrimSpace(methodID)
	if userID == "" || methodID == "" {
		return PaymentMethod{}, fmt.Errorf("%w: user id and payment method id are required", ErrUserInvalidInput)
	}
	var chosen PaymentMethod
	err := inTx(ctx, s.unit, "user", func(txCtx context.Context) error {
		existing, err := s.paymentMethods.List(txCtx, userID)
		if err != nil {
			return kindOf(err, "user")
		}
		target, ok := findPaymentMethod(existing, methodID)
		if !ok {
			return fmt.Errorf("%w: payment method not found", ErrUserNotFound)
		}
		now := s.clock()
		for _, other := range demoteOthers(existing, methodID, paymentMethodDefault) {
			other.UpdatedAt = now
			if err := s.paymentMethods.Save(txCtx, userID, other); err != nil {
				return kindOf(err, "user")
			}
		}
		if !target.IsDefault {
			target.IsDefault = true
			target.UpdatedAt = now
			if err := s.paymentMethods.Save(txCtx, userID, target); err != nil {
				return kindOf(err, "user")
			}
		}
		chosen = target
		return nil
	})
	if err != nil {
		return PaymentMethod{}, err
	}
	return chosen, nil
}

func (s *userService) DeletePaymentMethod(ctx context.Context, userID, methodID string) error {
	userID, methodID = strings.TrimSpace(userID), strings.TrimSpace(methodID)
	if userID == "" || methodID == "" {
		return fmt.Errorf("%w: user id and payment method id are required", ErrUserInvalidInput)
	}
	return inTx(ctx, s.unit, "user", func(txCtx context.Context) error {
		existing, err := s.paymentMethods.List(txCtx, userID)
		if err != nil {
			return kindOf(err, "user")
		}
		target, ok := findPaymentMethod(existing, methodID)
		if !ok {
			return fmt.Errorf("%w: payment method not found", ErrUserNotFound)
		}
		if err := s.paymentMethods.Delete(txCtx, userID, methodID); err != nil {
			return kindOf(err, "user")
		}
		if !target.IsDefault {
			return nil
		}
		next, ok := mostRecent(existing, methodID, paymentMethodDefault, func(m PaymentMethod) time.Time { return m.CreatedAt })
		if !ok {
			return nil
		}
		next.IsDefault = true
		next.UpdatedAt = s.clock()
		return kindOf(s.paymentMethods.Save(txCtx, userID, next), "user")
	})
}

func addressDefault(a *Address) (string, *bool)             { return a.ID, &a.IsDefault }
func paymentMethodDefault(m *PaymentMethod) (string, *bool) { return m.ID, &m.IsDefault }

// demoteOthers returns the items other than keepID that are currently flagged default, unflagged.
func demoteOthers[T any](items []T, keepID string, flag func(*T) (string, *bool)) []T {
	var changed []T
	for _, item := range items {
		id, isDefault := flag(&item)
		if id != keepID && *isDefault {
			*isDefault = false
			changed = append(changed, item)
		}
	}
	return changed
}

// mostRecent picks the newest item other than skipID.
func mostRecent[T any](items []T, skipID string, flag func(*T) (string, *bool), createdAt func(T) time.Time) (T, bool) {
	var (
		best  T
		found bool
	)
	for _, item := range items {
		if id, _ := flag(&item); id == skipID {
			continue
		}
		if !found || createdAt(item).After(createdAt(best)) {
			best, found = item, true
		}
	}
	return best, found
}

func findAddress(addresses []Address, id string) (Address, bool) {
	for _, a := range addresses {
		if a.ID == id {
			return a, true
		}
	}
	return Address{}, false
}

func findPaymentMethod(methods []PaymentMethod, id string) (PaymentMethod, bool) {
	for _, m := range methods {
		if m.ID == id {
			return m, true
		}
	}
	return PaymentMethod{}, false
}

func hasDefaultAddress(addresses []Address, excludeID string) bool {
	for _, a := range addresses {
		if a.IsDefault && a.ID != excludeID {
			return true
		}
	}
	return false
}

func sanitizeAddress(addr Address) (Address, error) {
	out := Address{
		ID:             strings.TrimSpace(addr.ID),
		Label:          strings.TrimSpace(addr.Label),
		Name:           strings.TrimSpace(addr.Name),
		Address:        strings.TrimSpace(addr.Address),
		City:           strings.TrimSpace(addr.City),
		Country:        strings.TrimSpace(addr.Country),
		PostalCode:     strings.ToUpper(strings.TrimSpace(addr.PostalCode)),
		Phone:          strings.TrimSpace(addr.Phone),
		SecondaryPhone: strings.TrimSpace(addr.SecondaryPhone),
	}
	var missing []string
	for _, field := range [][2]string{
		{"name", out.Name}, {"address", out.Address}, {"city", out.City}, {"country", out.Country}, {"phone", out.Phone},
	} {
		if field[1] == "" {
			missing = append(missing, field[0])
		}
	}
	if len(missing) > 0 {
		return Address{}, fmt.Errorf("%w: address requires %s", ErrUserInvalidInput, strings.Join(missing, ", "))
	}
	return out, nil
}

func validateDisplayName(name string) error {
	length := utf8.RuneCountInString(name)
	if length < 2 || length > 100 {
		return errInvalidDisplayName
	}
	return nil
}

func canonicaliseLanguageTag(tag string) (string, error) {
	tag = strings.ReplaceAll(strings.TrimSpace(tag), "_", "-")
	if tag == "" {
		return "", nil
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", errInvalidLanguageTag
	}
	return parsed.String(), nil
}

func normaliseProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
