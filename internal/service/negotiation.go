package service

import (
	"fmt"

	"installpro/internal/model"

	"github.com/shopspring/decimal"
)

// PriceLabel describes a price negotiation transition for the ledger and
// the notification sent about it.
type PriceLabel struct {
	Action           string
	Comment          string
	NotificationType string
	Title            string
	// NotifyInstaller routes the notification to the assigned installer
	// instead of the project's creator.
	NotifyInstaller bool
}

// LabelPriceTransition labels a change of installerPriceStatus. A supplied
// comment replaces the template except for acceptance. It reports false for
// statuses that carry no label (pending).
func LabelPriceTransition(status, actorName string, proposal decimal.NullDecimal, supplied string) (PriceLabel, bool) {
	price := FormatPrice(proposal)
	orSupplied := func(template string) string {
		if supplied != "" {
			return supplied
		}
		return template
	}

	switch status {
	case model.PriceStatusAccepted:
		return PriceLabel{
			Action:           model.ActionPriceAccepted,
			Comment:          fmt.Sprintf("Precio de instalación aceptado por %s. Precio: %s", actorName, price),
			NotificationType: model.NotifPriceAccepted,
			Title:            "Precio de instalación aceptado",
		}, true
	case model.PriceStatusSuggested:
		return PriceLabel{
			Action:           model.ActionPriceSuggested,
			Comment:          orSupplied(fmt.Sprintf("Precio sugerido por %s. Nuevo precio: %s", actorName, price)),
			NotificationType: model.NotifPriceSuggested,
			Title:            "Nuevo precio sugerido",
		}, true
	case model.PriceStatusCounterOffered:
		return PriceLabel{
			Action:           model.ActionPriceCounterOffered,
			Comment:          orSupplied(fmt.Sprintf("Contra-oferta de %s. Nuevo precio: %s", actorName, price)),
			NotificationType: model.NotifPriceCounterOffered,
			Title:            "Contra-oferta recibida",
			NotifyInstaller:  true,
		}, true
	case model.PriceStatusRejected:
		return PriceLabel{
			Action:           model.ActionPriceRejected,
			Comment:          orSupplied(fmt.Sprintf("Precio de instalación rechazado por %s", actorName)),
			NotificationType: model.NotifPriceRejected,
			Title:            "Precio de instalación rechazado",
		}, true
	}
	return PriceLabel{}, false
}

// FormatPrice renders an amount as "$500" or "$512.5"; "$0" when unset.
func FormatPrice(d decimal.NullDecimal) string {
	if !d.Valid {
		return "$0"
	}
	return "$" + d.Decimal.String()
}

func decimalString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

// parseNullDecimal is the inverse of decimalString.
func parseNullDecimal(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// priceSummary describes which side acted, for notification messages.
func priceSummary(status, actorName, price string) string {
	switch status {
	case model.PriceStatusAccepted:
		return fmt.Sprintf("%s aceptó el precio de instalación de %s", actorName, price)
	case model.PriceStatusSuggested:
		return fmt.Sprintf("%s sugirió un precio de instalación de %s", actorName, price)
	case model.PriceStatusCounterOffered:
		return fmt.Sprintf("%s respondió con una contra-oferta de %s", actorName, price)
	case model.PriceStatusRejected:
		return fmt.Sprintf("%s rechazó el precio de instalación", actorName)
	}
	return ""
}
