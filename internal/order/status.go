package order

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mkovalev/webstore/internal/models"
	"github.com/mkovalev/webstore/internal/schema"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrUnknownStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid transition")
)

// Machine enforces legal order status transitions. Which table it uses
// depends on whether the schema carries the intermediate processing status;
// any status or edge not explicitly listed is rejected, never guessed.
type Machine struct {
	DB   *gorm.DB
	Caps schema.Capabilities
}

// Supported lists the statuses the storage schema can hold.
func (m *Machine) Supported() []Status {
	if m.Caps.HasProcessingStatus {
		return []Status{StatusPending, StatusProcessing, StatusCompleted, StatusCancelled}
	}
	return []Status{StatusPending, StatusCompleted, StatusCancelled}
}

func (m *Machine) supported(s Status) bool {
	for _, v := range m.Supported() {
		if v == s {
			return true
		}
	}
	return false
}

func (m *Machine) transitions() map[Status][]Status {
	if m.Caps.HasProcessingStatus {
		return map[Status][]Status{
			StatusPending:    {StatusProcessing, StatusCancelled},
			StatusProcessing: {StatusCompleted, StatusCancelled},
			StatusCompleted:  {},
			StatusCancelled:  {},
		}
	}
	return map[Status][]Status{
		StatusPending:   {StatusCompleted, StatusCancelled},
		StatusCompleted: {},
		StatusCancelled: {},
	}
}

// Apply moves the order to the requested status after checking it against
// the transition table. The write itself is a single update keyed by order
// id, so a failed check leaves no partial state behind.
func (m *Machine) Apply(orderID uint, requested Status) error {
	var ord models.Order
	if err := m.DB.First(&ord, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return err
	}

	if !m.supported(requested) {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, requested)
	}

	allowed, ok := m.transitions()[Status(ord.Status)]
	if !ok {
		return fmt.Errorf("%w: unrecognized current status %q", ErrInvalidTransition, ord.Status)
	}
	permitted := false
	for _, s := range allowed {
		if s == requested {
			permitted = true
			break
		}
	}
	if !permitted {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ord.Status, requested)
	}

	return m.DB.Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", string(requested)).Error
}
