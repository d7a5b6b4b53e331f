package service

import (
	"time"

	"github.com/tournevent/storefront/internal/domain"
	"github.com/tournevent/storefront/pkg/pos"
	"github.com/tournevent/storefront/pkg/shipper"
)

func toPOSOrder(req *domain.OrderRequest, now time.Time) *pos.Order {
	items := make([]pos.Item, len(req.Items))
	for i, item := range req.Items {
		items[i] = pos.Item{
			ProductID:           item.ProductID,
			Name:                item.Name,
			Price:               item.Price,
			Quantity:            item.Quantity,
			SpecialInstructions: item.SpecialInstructions,
		}
		if cz := item.Customizations; cz != nil {
			items[i].Customizations = &pos.Customizations{
				Size:   cz.Size,
				Milk:   cz.Milk,
				Syrup:  cz.Syrup,
				AddOns: cz.AddOns,
			}
		}
	}

	order := &pos.Order{
		Items:               items,
		PaymentMethod:       req.PaymentMethod,
		SpecialInstructions: req.SpecialInstructions,
		EstimatedReadyTime:  now.Add(domain.PreparationWindow),
	}
	if c := req.Customer; c != nil {
		order.Customer = pos.Customer{
			FirstName: c.FirstName,
			LastName:  c.LastName,
			Email:     c.Email,
			Phone:     c.Phone,
		}
	}
	return order
}

func toParcelItems(items []domain.LineItem) []shipper.Item {
	out := make([]shipper.Item, len(items))
	for i, item := range items {
		out[i] = shipper.Item{
			ProductName: item.DisplayName(),
			Quantity:    item.Quantity,
		}
	}
	return out
}
