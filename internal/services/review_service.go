package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/lumashop/api/internal/repositories"
)

const (
	reviewIDPrefix      = "rev_"
	maxReviewTitleLen   = 120
	maxReviewCommentLen = 2000
	anonymousReviewer   = "Customer"
)

var (
	// ErrReviewInvalidInput indicates validation failures for review operations.
	ErrReviewInvalidInput = fmt.Errorf("review: %w", ErrInvalidInput)
	// ErrReviewNotFound indicates a review or product could not be located.
	ErrReviewNotFound = fmt.Errorf("review: %w", ErrNotFound)
	// ErrReviewUnauthorized indicates the actor is not allowed to change the review.
	ErrReviewUnauthorized = fmt.Errorf("review: %w", ErrUnauthorized)
	// ErrReviewConflict signals a second review of the same product by the same user.
	ErrReviewConflict = fmt.Errorf("review: %w", ErrConflict)
)

var reviewPolicy = bluemonday.StrictPolicy()

// ReviewServiceDeps bundles collaborators required to construct a ReviewService.
type ReviewServiceDeps struct {
	Reviews          repositories.ReviewRepository
	Products         repositories.ProductRepository
	UnitOfWork       repositories.UnitOfWork
	Clock            func() time.Time
	IDGenerator      func() string
	Sanitizer        func(string) string
	ProfanityChecker func(string) bool
}

type reviewService struct {
	reviews   repositories.ReviewRepository
	products  repositories.ProductRepository
	unit      repositories.UnitOfWork
	clock     func() time.Time
	newID     func() string
	sanitize  func(string) string
	isProfane func(string) bool
}

// NewReviewService wires dependencies into a concrete ReviewService implementation.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("review service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return reviewIDPrefix + ulid.Make().String()
		}
	}
	sanitize := deps.Sanitizer
	if sanitize == nil {
		sanitize = sanitizeReviewText
	}
	profanity := deps.ProfanityChecker
	if profanity == nil {
		profanity = basicProfanityChecker
	}
	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	return &reviewService{
		reviews:  deps.Reviews,
		products: deps.Products,
		unit:     unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:     idGen,
		sanitize:  sanitize,
		isProfane: profanity,
	}, nil
}

func (s *reviewService) List(ctx context.Context, productID string) ([]Review, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrReviewInvalidInput)
	}
	reviews, err := s.reviews.ListByProduct(ctx, productID)
	if err != nil {
		return nil, s.mapError(err)
	}
	if reviews == nil {
		reviews = []Review{}
	}
	return reviews, nil
}

// Create stores the caller's only review of a product and refreshes the product's rating aggregate.
func (s *reviewService) Create(ctx context.Context, cmd CreateReviewCommand) (Review, error) {
	review, err := s.reviewFromCommand(cmd)
	if err != nil {
		return Review{}, err
	}

	err = inTx(ctx, s.unit, "review", func(txCtx context.Context) error {
		if _, err := s.products.FindByID(txCtx, review.ProductID); err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: product not found", ErrReviewNotFound)
			}
			return s.mapError(err)
		}
		if _, err := s.reviews.FindByUserAndProduct(txCtx, review.UserID, review.ProductID); err == nil {
			return fmt.Errorf("%w: product already reviewed", ErrReviewConflict)
		} else if !isNotFound(err) {
			return s.mapError(err)
		}
		existing, err := s.reviews.ListByProduct(txCtx, review.ProductID)
		if err != nil {
			return s.mapError(err)
		}
		if err := s.reviews.Insert(txCtx, review); err != nil {
			return s.mapError(err)
		}
		return s.refreshRating(txCtx, review.ProductID, append(existing, review))
	})
	if err != nil {
		return Review{}, err
	}
	return review, nil
}

// Delete removes a review when the actor wrote it or is an admin.
func (s *reviewService) Delete(ctx context.Context, cmd DeleteReviewCommand) error {
	if !cmd.Actor.authenticated() {
		return fmt.Errorf("%w: sign in to manage reviews", ErrReviewUnauthorized)
	}
	reviewID := strings.TrimSpace(cmd.ReviewID)
	if reviewID == "" {
		return fmt.Errorf("%w: review id is required", ErrReviewInvalidInput)
	}

	return inTx(ctx, s.unit, "review", func(txCtx context.Context) error {
		review, err := s.reviews.FindByID(txCtx, reviewID)
		if err != nil {
			return s.mapError(err)
		}
		if productID := strings.TrimSpace(cmd.ProductID); productID != "" && review.ProductID != productID {
			return fmt.Errorf("%w: review not found for product", ErrReviewNotFound)
		}
		if review.UserID != cmd.Actor.UserID && !cmd.Actor.Admin {
			return fmt.Errorf("%w: not authorized to delete this review", ErrReviewUnauthorized)
		}
		all, err := s.reviews.ListByProduct(txCtx, review.ProductID)
		if err != nil {
			return s.mapError(err)
		}
		remaining := make([]Review, 0, len(all))
		for _, r := range all {
			if r.ID != review.ID {
				remaining = append(remaining, r)
			}
		}
		if err := s.reviews.Delete(txCtx, review.ID); err != nil {
			return s.mapError(err)
		}
		if err := s.refreshRating(txCtx, review.ProductID, remaining); err != nil && !errors.Is(err, ErrReviewNotFound) {
			return err
		}
		return nil
	})
}

func (s *reviewService) refreshRating(ctx context.Context, productID string, reviews []Review) error {
	rating, count := averageRating(reviews)
	if err := s.products.UpdateRating(ctx, productID, rating, count); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *reviewService) reviewFromCommand(cmd CreateReviewCommand) (Review, error) {
	if !cmd.Actor.authenticated() {
		return Review{}, fmt.Errorf("%w: sign in to review products", ErrReviewUnauthorized)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Review{}, fmt.Errorf("%w: product id is required", ErrReviewInvalidInput)
	}
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return Review{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrReviewInvalidInput)
	}
	title := s.sanitize(cmd.Title)
	comment := s.sanitize(cmd.Comment)
	switch {
	case comment == "":
		return Review{}, fmt.Errorf("%w: comment is required", ErrReviewInvalidInput)
	case utf8.RuneCountInString(comment) > maxReviewCommentLen:
		return Review{}, fmt.Errorf("%w: comment must be at most %d characters", ErrReviewInvalidInput, maxReviewCommentLen)
	case utf8.RuneCountInString(title) > maxReviewTitleLen:
		return Review{}, fmt.Errorf("%w: title must be at most %d characters", ErrReviewInvalidInput, maxReviewTitleLen)
	case s.isProfane(title) || s.isProfane(comment):
		return Review{}, fmt.Errorf("%w: review contains profanity", ErrReviewInvalidInput)
	}

	name := strings.TrimSpace(cmd.Actor.Name)
	if name == "" {
		name = anonymousReviewer
	}
	now := s.clock()
	return Review{
		ID:        s.newID(),
		ProductID: productID,
		UserID:    cmd.Actor.UserID,
		UserName:  name,
		Rating:    cmd.Rating,
		Title:     title,
		Comment:   comment,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *reviewService) mapError(err error) error {
	if err == nil || classified(err) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %w", ErrReviewNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %w", ErrReviewConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("review: %w: %w", ErrUnavailable, err)
		}
	}
	return err
}

// averageRating rounds the mean to one decimal place.
func averageRating(reviews []Review) (float64, int) {
	if len(reviews) == 0 {
		return 0, 0
	}
	total := 0
	for _, r := range reviews {
		total += r.Rating
	}
	mean := float64(total) / float64(len(reviews))
	return math.Round(mean*10) / 10, len(reviews)
}

var defaultProfanityTerms = map[string]struct{}{
	"asshole": {},
	"bastard": {},
	"bitch":   {},
	"fuck":    {},
	"fucker":  {},
	"shit":    {},
}

func basicProfanityChecker(input string) bool {
	if input == "" {
		return false
	}
	words := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsNumber(r))
	})
	for _, word := range words {
		if _, ok := defaultProfanityTerms[word]; ok {
			return true
		}
	}
	return false
}

// sanitizeReviewText strips markup, drops control characters, and collapses spacing while keeping
// intentional newlines.
func sanitizeReviewText(input string) string {
	stripped := html.UnescapeString(reviewPolicy.Sanitize(input))
	trimmed := strings.TrimSpace(stripped)
	if trimmed == "" {
		return ""
	}

	normalized := strings.ReplaceAll(strings.ReplaceAll(trimmed, "\r\n", "\n"), "\r", "\n")
	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		line = strings.Map(func(r rune) rune {
			if unicode.IsControl(r) && r != '\n' {
				return -1
			}
			return r
		}, line)
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
