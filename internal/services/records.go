package services

import (
	"screening-system/models"

	"github.com/pocketbase/pocketbase/core"
)

func eventFromRecord(r *core.Record) *models.Event {
	return &models.Event{
		ID:            r.Id,
		Title:         r.GetString("title"),
		Description:   r.GetString("description"),
		Location:      r.GetString("location"),
		StartAt:       r.GetDateTime("start_at").Time(),
		MaxCapacity:   r.GetInt("max_capacity"),
		Price:         int64(r.GetInt("price")),
		PayWhatYouCan: r.GetBool("pay_what_you_can"),
		MinPrice:      int64(r.GetInt("min_price")),
	}
}

func rsvpFromRecord(r *core.Record) *models.RSVP {
	return &models.RSVP{
		ID:      r.Id,
		UserID:  r.GetString("user"),
		EventID: r.GetString("event"),
		Status:  r.GetString("status"),
		Created: r.GetDateTime("created").Time(),
		Updated: r.GetDateTime("updated").Time(),
	}
}

func paymentFromRecord(r *core.Record) *models.Payment {
	return &models.Payment{
		ID:       r.Id,
		UserID:   r.GetString("user"),
		EventID:  r.GetString("event"),
		Amount:   int64(r.GetInt("amount")),
		Status:   r.GetString("status"),
		StripeID: r.GetString("stripe_id"),
		Created:  r.GetDateTime("created").Time(),
		Updated:  r.GetDateTime("updated").Time(),
	}
}
