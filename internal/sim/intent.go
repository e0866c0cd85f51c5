package sim

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/LeoCTH/gravity-guns/internal/item"
)

type IntentKind int

const (
	IntentUse IntentKind = iota
	IntentRelease
	IntentAim
	IntentMove
	IntentLeave
)

func (k IntentKind) String() string {
	switch k {
	case IntentUse:
		return "use"
	case IntentRelease:
		return "release"
	case IntentAim:
		return "aim"
	case IntentMove:
		return "move"
	case IntentLeave:
		return "leave"
	default:
		return "unknown"
	}
}

// Intent is one input from a player, applied on the next input tick.
type Intent struct {
	Kind   IntentKind
	Player uuid.UUID
	// Stack is the item in hand for Use.
	Stack *item.ItemStack
	// Yaw and Pitch are degrees, for Aim.
	Yaw   float64
	Pitch float64
	// Position is the new feet position, for Move.
	Position mgl64.Vec3
}

func Use(player uuid.UUID, stack *item.ItemStack) Intent {
	return Intent{Kind: IntentUse, Player: player, Stack: stack}
}

func Release(player uuid.UUID) Intent { return Intent{Kind: IntentRelease, Player: player} }

func Aim(player uuid.UUID, yaw, pitch float64) Intent {
	return Intent{Kind: IntentAim, Player: player, Yaw: yaw, Pitch: pitch}
}

func Move(player uuid.UUID, feet mgl64.Vec3) Intent {
	return Intent{Kind: IntentMove, Player: player, Position: feet}
}

func Leave(player uuid.UUID) Intent { return Intent{Kind: IntentLeave, Player: player} }
