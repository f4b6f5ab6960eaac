package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/platform/mail"
	"github.com/lumashop/api/internal/repositories"
)

var errNoRecipient = errors.New("notification: order has no contact email")

var templateFuncs = map[string]any{
	"money":     domain.FormatMinor,
	"lineTotal": domain.LineTotal,
}

var orderPlacedHTML = htmltemplate.Must(htmltemplate.New("order_placed.html").Funcs(templateFuncs).Parse(`<p>Hi {{.Name}},</p>
<p>Thanks for your order <strong>{{.Order.OrderNumber}}</strong>. We will let you know when it ships.</p>
<table>
{{- range .Order.Items}}
<tr><td>{{.Name}} &times; {{.Quantity}}</td><td>{{money (lineTotal .UnitPrice .Quantity)}}</td></tr>
{{- end}}
<tr><td><strong>Total</strong></td><td><strong>{{money .Order.TotalPrice}}</strong></td></tr>
</table>
<p>Shipping to {{.Order.ShippingAddress.Address}}, {{.Order.ShippingAddress.City}}, {{.Order.ShippingAddress.Country}}</p>
`))

var orderPlacedText = texttemplate.Must(texttemplate.New("order_placed.txt").Funcs(templateFuncs).Parse(`Hi {{.Name}},

Thanks for your order {{.Order.OrderNumber}}.
{{range .Order.Items}}
- {{.Name}} x {{.Quantity}}: {{money (lineTotal .UnitPrice .Quantity)}}
{{- end}}

Total: {{money .Order.TotalPrice}}
`))

type NotificationServiceDeps struct {
	Sender mail.Sender
	// Users resolves the account email of registered owners who checked out without one.
	Users      repositories.UserRepository
	AdminEmail string
}

type notificationService struct {
	sender mail.Sender
	users  repositories.UserRepository
	admin  string
}

func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Sender == nil {
		return nil, errors.New("notification service: mail sender is required")
	}
	return &notificationService{
		sender: deps.Sender,
		users:  deps.Users,
		admin:  strings.TrimSpace(deps.AdminEmail),
	}, nil
}

type orderPlacedView struct {
	Name  string
	Order Order
}

// OrderPlaced emails the customer a confirmation and, when configured, copies the shop admin.
func (s *notificationService) OrderPlaced(ctx context.Context, order Order) error {
	to, name := s.recipient(ctx, order)
	if to == "" {
		return errNoRecipient
	}
	view := orderPlacedView{Name: name, Order: order}
	var html, text bytes.Buffer
	if err := orderPlacedHTML.Execute(&html, view); err != nil {
		return fmt.Errorf("notification: render html: %w", err)
	}
	if err := orderPlacedText.Execute(&text, view); err != nil {
		return fmt.Errorf("notification: render text: %w", err)
	}

	msg := mail.Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Order %s confirmed", order.OrderNumber),
		HTML:    html.String(),
		Text:    text.String(),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notification: send confirmation: %w", err)
	}
	if s.admin == "" {
		return nil
	}
	return s.sender.Send(ctx, mail.Message{
		To:      []string{s.admin},
		Subject: fmt.Sprintf("New order %s (%s)", order.OrderNumber, domain.FormatMinor(order.TotalPrice)),
		Text:    text.String(),
	})
}

func (s *notificationService) recipient(ctx context.Context, order Order) (string, string) {
	name := strings.TrimSpace(order.ShippingAddress.Name)
	if guest, ok := order.Guest(); ok {
		if guest.Name != "" {
			name = guest.Name
		}
		return guest.Email, name
	}
	if email := strings.TrimSpace(order.ShippingAddress.Email); email != "" {
		return email, name
	}
	userID, ok := order.UserID()
	if !ok || s.users == nil {
		return "", name
	}
	profile, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", name
	}
	if name == "" {
		name = profile.Name
	}
	return profile.Email, name
}
