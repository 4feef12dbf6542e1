package repositories

import "database/sql"

// MySQLStore wires every MySQL repository behind the Store interface.
type MySQLStore struct {
	TripRepository
	SeatHoldRepository
	BookingRepository
	LoyaltyRepository
	PaymentRepository
}

func NewMySQLStore(db *sql.DB) MySQLStore {
	return MySQLStore{
		TripRepository:     TripRepository{DB: db},
		SeatHoldRepository: SeatHoldRepository{DB: db},
		BookingRepository:  BookingRepository{DB: db},
		LoyaltyRepository:  LoyaltyRepository{DB: db},
		PaymentRepository:  PaymentRepository{DB: db},
	}
}

var _ Store = MySQLStore{}
