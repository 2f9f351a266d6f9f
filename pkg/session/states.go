package session

import "github.com/remud/remud/pkg/world"

// The login/registration state set for the primary per-connection FSM,
// plus the secondary stackable UpdatePassword FSM's own three states.
const (
	StateNotConnected    world.StateId = "not_connected"
	StateConnectionReady world.StateId = "connection_ready"
	StateLoginName       world.StateId = "login_name"
	StateLoginPassword   world.StateId = "login_password"
	StateCreatePassword  world.StateId = "create_password"
	StateVerifyPassword  world.StateId = "verify_password"
	StateCreateNewPlayer world.StateId = "create_new_player"
	StateSpawnPlayer     world.StateId = "spawn_player"
	StateInGame          world.StateId = "in_game"

	StateUpdatePasswordOld     world.StateId = "update_password_old"
	StateUpdatePasswordNew     world.StateId = "update_password_new"
	StateUpdatePasswordConfirm world.StateId = "update_password_confirm"
)

// Fixed user-facing strings. A failed password check always gets the same
// msgPasswordError, with no detail about the underlying cause; a login to a
// character that is already connected gets msgAlreadyOnline instead.
const (
	msgWelcome       = "Welcome to ReMUD."
	msgPasswordError = "|red|Login incorrect.|-|"
	msgTooManyTries  = "|red|Too many attempts. Goodbye.|-|"
	msgAlreadyOnline = "|red|That character is already connected.|-|"
	msgBadName       = "|red|Names are 2 to 32 letters, digits, spaces, apostrophes, hyphens, or underscores.|-|"
	msgBadLength     = "|red|Passwords must be between 5 and 1024 characters.|-|"
	msgMismatch      = "|red|Passwords did not match.|-|"
)
