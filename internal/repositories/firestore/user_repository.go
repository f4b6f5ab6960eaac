package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/lumashop/api/internal/domain"
	pfirestore "github.com/lumashop/api/internal/platform/firestore"
)

const (
	usersCollection           = "users"
	addressCollectionPattern  = "users/%s/addresses"
	paymentCollectionPattern  = "users/%s/paymentMethods"
	wishlistCollectionPattern = "users/%s/wishlist"
)

type userDocument struct {
	Name              string    `firestore:"name"`
	Email             string    `firestore:"email"`
	Phone             string    `firestore:"phone,omitempty"`
	PreferredLanguage string    `firestore:"preferredLanguage,omitempty"`
	Roles             []string  `firestore:"roles,omitempty"`
	CreatedAt         time.Time `firestore:"createdAt"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

// UserRepository persists profile documents under users/{uid}.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

func NewUserRepository(provider *pfirestore.Provider) *UserRepository {
	return &UserRepository{base: pfirestore.NewBaseRepository[userDocument](provider, usersCollection, nil, nil)}
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	id, err := requireID("users.get", userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return domain.UserProfile{
		ID:                doc.ID,
		Name:              doc.Data.Name,
		Email:             doc.Data.Email,
		Phone:             doc.Data.Phone,
		PreferredLanguage: doc.Data.PreferredLanguage,
		Roles:             append([]string(nil), doc.Data.Roles...),
		CreatedAt:         doc.Data.CreatedAt.UTC(),
		UpdatedAt:         doc.Data.UpdatedAt.UTC(),
	}, nil
}

// Save merges the profile so fields written by other writers survive.
func (r *UserRepository) Save(ctx context.Context, profile domain.UserProfile) error {
	id, err := requireID("users.save", profile.ID)
	if err != nil {
		return err
	}
	return r.base.Set(ctx, id, userDocument{
		Name:              profile.Name,
		Email:             profile.Email,
		Phone:             profile.Phone,
		PreferredLanguage: profile.PreferredLanguage,
		Roles:             append([]string(nil), profile.Roles...),
		CreatedAt:         profile.CreatedAt.UTC(),
		UpdatedAt:         profile.UpdatedAt.UTC(),
	}, firestore.MergeAll)
}

// userScoped returns a repository over one user's subcollection.
func userScoped[T any](provider *pfirestore.Provider, pattern, op, userID string) (*pfirestore.BaseRepository[T], error) {
	uid, err := requireID(op, userID)
	if err != nil {
		return nil, err
	}
	return pfirestore.NewBaseRepository[T](provider, fmt.Sprintf(pattern, uid), nil, nil), nil
}
