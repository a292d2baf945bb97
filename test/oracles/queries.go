package oracles

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"legalpulse/store"
)

// Snapshot is the persisted state an oracle inspects.
type Snapshot struct {
	Users         []store.User
	Registrations []store.Registration
}

// Oracle returns a description of the first violation it finds, or "".
type Oracle struct {
	Name  string
	Check func(Snapshot) string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_unique_email",
			Check: func(s Snapshot) string {
				seen := map[string]string{}
				for _, u := range s.Users {
					key := strings.ToLower(u.Email)
					if prev, dup := seen[key]; dup {
						return fmt.Sprintf("users %s and %s share %s", prev, u.ID, u.Email)
					}
					seen[key] = u.ID
				}
				return ""
			},
		},
		{
			Name: "O2_single_active_registration",
			Check: func(s Snapshot) string {
				active := map[string]string{}
				for _, r := range s.Registrations {
					if !r.Status.Active() {
						continue
					}
					if prev, dup := active[r.UserID]; dup {
						return fmt.Sprintf("user %s has active %s and %s", r.UserID, prev, r.ID)
					}
					active[r.UserID] = r.ID
				}
				return ""
			},
		},
		{
			Name: "O3_registration_owner_exists",
			Check: func(s Snapshot) string {
				roles := userRoles(s)
				for _, r := range s.Registrations {
					if _, ok := roles[r.UserID]; !ok {
						return fmt.Sprintf("registration %s references missing user %s", r.ID, r.UserID)
					}
				}
				return ""
			},
		},
		{
			Name: "O4_registration_owner_not_client",
			Check: func(s Snapshot) string {
				roles := userRoles(s)
				for _, r := range s.Registrations {
					if roles[r.UserID] == store.RoleClient {
						return fmt.Sprintf("registration %s belongs to client %s", r.ID, r.UserID)
					}
				}
				return ""
			},
		},
		{
			Name: "O5_known_status",
			Check: func(s Snapshot) string {
				for _, r := range s.Registrations {
					if !r.Status.Valid() {
						return fmt.Sprintf("registration %s has status %q", r.ID, r.Status)
					}
				}
				return ""
			},
		},
		{
			Name: "O6_unique_registration_id",
			Check: func(s Snapshot) string {
				seen := map[string]struct{}{}
				for _, r := range s.Registrations {
					if _, dup := seen[r.ID]; dup {
						return "duplicate registration id " + r.ID
					}
					seen[r.ID] = struct{}{}
				}
				return ""
			},
		},
		{
			Name: "O7_password_hashed",
			Check: func(s Snapshot) string {
				for _, u := range s.Users {
					if !strings.HasPrefix(u.PasswordHash, "$2") {
						return fmt.Sprintf("user %s has no bcrypt hash", u.ID)
					}
				}
				return ""
			},
		},
	}
}

func userRoles(s Snapshot) map[string]store.Role {
	roles := make(map[string]store.Role, len(s.Users))
	for _, u := range s.Users {
		roles[u.ID] = u.Role
	}
	return roles
}

// Run loads a snapshot and returns the first failing oracle with its finding,
// or an empty name if all pass.
func Run(ctx context.Context, st *store.Store) (string, string, error) {
	var snap Snapshot
	err := st.View(ctx, func(tx *store.Tx) error {
		snap = Snapshot{Users: tx.Users(), Registrations: tx.Registrations()}
		return nil
	})
	if err != nil {
		return "", "", fmt.Errorf("load snapshot: %w", err)
	}
	for _, o := range All() {
		if finding := o.Check(snap); finding != "" {
			return o.Name, finding, nil
		}
	}
	return "", "", nil
}

// StrayKeys lists kv_records keys outside the persisted layout.
const StrayKeys = `SELECT key FROM kv_records
                   WHERE key NOT IN ('users', 'lspRegistrations')
                     AND key <> 'currentUser' AND key NOT LIKE 'currentUser:%'`

// RunSQL checks the raw Postgres table backing the store.
func RunSQL(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	rows, err := pool.Query(ctx, StrayKeys)
	if err != nil {
		return "O8_stray_keys", "", fmt.Errorf("oracle O8_stray_keys: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return "O8_stray_keys", "", err
		}
		return "O8_stray_keys", fmt.Sprintf("%v", vals), nil
	}
	return "", "", rows.Err()
}
