package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/mrlokans/bookkeeper/internal/entities"
	"github.com/mrlokans/bookkeeper/internal/repository"
	"github.com/mrlokans/bookkeeper/internal/settingsstore"
)

// Restore loads the persisted theme and user. It runs once; later calls
// return the first result. The loading flag drops when it finishes.
func (s *Session) Restore(ctx context.Context) Result {
	s.restoreOnce.Do(func() {
		defer s.release()
		s.restoreResult = s.restore(ctx)
	})
	return s.restoreResult
}

func (s *Session) restore(ctx context.Context) Result {
	s.darkTheme.Set(s.prefs.DarkTheme())

	id := s.prefs.LoggedInUserID()
	if id == settingsstore.NoUser {
		return ok("No saved session")
	}

	if s.opts.SplashDelay > 0 {
		timer := time.NewTimer(s.opts.SplashDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return fail(StorageError, "Session restore cancelled", ctx.Err())
		case <-timer.C:
		}
	}

	user, err := s.store.GetUserByID(ctx, uint(id))
	if errors.Is(err, repository.ErrUserNotFound) {
		log.Printf("Session: saved user %d no longer exists, forgetting it", id)
		if err := s.prefs.ClearLoggedInUserID(); err != nil {
			log.Printf("Session: failed to clear saved user: %v", err)
		}
		return fail(NotFound, "Saved user no longer exists", err)
	}
	if err != nil {
		return classify("restore", err)
	}

	s.setUser(user)
	log.Printf("Session: restored user %d", user.ID)
	res := ok("Welcome back, " + user.Name)
	res.User = cloneUser(user)
	return res
}

func (s *Session) Login(ctx context.Context, email, password string) Result {
	if blank(email, password) {
		return fail(InvalidInput, "Please fill in email and password", nil)
	}
	defer s.track()()

	user, err := s.store.Login(ctx, email, password)
	if err != nil {
		return classify("login", err)
	}
	s.signIn(user)

	res := ok("Welcome, " + user.Name)
	res.User = cloneUser(user)
	return res
}

func (s *Session) Register(ctx context.Context, name, email, password string) Result {
	if blank(name, email, password) {
		return fail(InvalidInput, "Please fill in all fields", nil)
	}
	defer s.track()()

	user, err := s.store.RegisterUser(ctx, name, email, password)
	if err != nil {
		return classify("register", err)
	}
	s.signIn(user)

	res := ok("Account created")
	res.User = cloneUser(user)
	return res
}

func (s *Session) signIn(user *entities.User) {
	s.setUser(user)
	if err := s.prefs.SetLoggedInUserID(user.ID); err != nil {
		log.Printf("Session: failed to persist user %d: %v", user.ID, err)
	}
}

// Logout forgets the user and every persisted preference.
func (s *Session) Logout(ctx context.Context) Result {
	s.signOut()
	return ok("Logged out")
}

func (s *Session) signOut() {
	s.setUser(nil)
	if err := s.prefs.Clear(); err != nil {
		log.Printf("Session: failed to clear preferences: %v", err)
	}
	s.darkTheme.Set(false)
}

// ProfileUpdate carries the profile fields to change; nil leaves a field as is.
type ProfileUpdate struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	Bio        *string `json:"bio"`
	PictureRef *string `json:"picture_ref"`
}

func (s *Session) UpdateUserProfile(ctx context.Context, update ProfileUpdate) Result {
	user, res := s.requireUser()
	if res != nil {
		return *res
	}
	defer s.track()()

	if update.Name != nil {
		user.Name = strings.TrimSpace(*update.Name)
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.Bio != nil {
		user.Bio = strings.TrimSpace(*update.Bio)
	}
	if update.PictureRef != nil {
		user.PictureRef = strings.TrimSpace(*update.PictureRef)
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return classify("update profile", err)
	}

	// Only publish if nobody switched users meanwhile.
	s.userMu.Lock()
	if current := s.currentUser.Get(); current != nil && current.ID == user.ID {
		s.currentUser.Set(cloneUser(user))
	}
	s.userMu.Unlock()

	updated := ok("Profile updated")
	updated.User = cloneUser(user)
	return updated
}

// DeleteAccount removes the user and their shelf, then logs out.
func (s *Session) DeleteAccount(ctx context.Context) Result {
	user, res := s.requireUser()
	if res != nil {
		return *res
	}
	defer s.track()()

	if err := s.store.DeleteUser(ctx, user.ID); err != nil {
		return classify("delete account", err)
	}
	s.signOut()
	return ok("Account deleted")
}

func (s *Session) SetDarkTheme(enabled bool) Result {
	s.darkTheme.Set(enabled)
	return s.persistTheme(enabled)
}

func (s *Session) ToggleTheme() Result {
	return s.persistTheme(s.darkTheme.Update(func(enabled bool) bool { return !enabled }))
}

func (s *Session) persistTheme(enabled bool) Result {
	if err := s.prefs.SetDarkTheme(enabled); err != nil {
		log.Printf("Session: failed to persist theme: %v", err)
		return fail(StorageError, "Could not save theme", err)
	}
	return ok("Theme updated")
}
