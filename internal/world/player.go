package world

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

const (
	PlayerEyeHeight = 1.62
	PlayerWidth     = 0.6
	PlayerHeight    = 1.8
)

// Player is an actor that aims with yaw and pitch in degrees. Yaw 0 looks
// toward +Z and positive pitch looks down.
type Player struct {
	uuid   uuid.UUID
	name   string
	entity *Entity

	mu    sync.RWMutex
	feet  mgl64.Vec3
	yaw   float64
	pitch float64
}

func (p *Player) UUID() uuid.UUID { return p.uuid }

func (p *Player) Name() string { return p.name }

// Entity returns the player's world record; it carries no rigid body.
func (p *Player) Entity() *Entity { return p.entity }

func (p *Player) Position() mgl64.Vec3 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.feet
}

func (p *Player) SetPosition(feet mgl64.Vec3) {
	p.mu.Lock()
	p.feet = feet
	p.mu.Unlock()
	if p.entity != nil {
		p.entity.SetPosition(feet.Add(mgl64.Vec3{0, PlayerHeight / 2, 0}))
	}
}

func (p *Player) Rotation() (yaw, pitch float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.yaw, p.pitch
}

func (p *Player) SetRotation(yaw, pitch float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.yaw = normalizeYaw(yaw)
	p.pitch = mgl64.Clamp(pitch, -90, 90)
}

func (p *Player) EyePosition() mgl64.Vec3 {
	return p.Position().Add(mgl64.Vec3{0, PlayerEyeHeight, 0})
}

func (p *Player) LookVector() mgl64.Vec3 {
	yaw, pitch := p.Rotation()
	return DirectionFromYawPitch(yaw, pitch)
}

// DirectionFromYawPitch returns the unit look vector for yaw and pitch in
// degrees.
func DirectionFromYawPitch(yaw, pitch float64) mgl64.Vec3 {
	yawRad := mgl64.DegToRad(yaw)
	pitchRad := mgl64.DegToRad(pitch)
	return mgl64.Vec3{
		-math.Sin(yawRad) * math.Cos(pitchRad),
		-math.Sin(pitchRad),
		math.Cos(yawRad) * math.Cos(pitchRad),
	}
}

func normalizeYaw(yaw float64) float64 {
	yaw = math.Mod(yaw, 360)
	if yaw >= 180 {
		yaw -= 360
	}
	if yaw < -180 {
		yaw += 360
	}
	return yaw
}
