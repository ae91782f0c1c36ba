package models

import "strings"

// Scope — тип сущности, в которую приглашают.
type Scope string

const (
	ScopeProject   Scope = "project"
	ScopePage      Scope = "page"
	ScopeTeam      Scope = "team"
	ScopeWorkspace Scope = "workspace" // тот же team_id, уровень воркспейса
)

// Personal отвечает на вопрос: членство персональное (project/page)?
func (s Scope) Personal() bool { return s == ScopeProject || s == ScopePage }

// Valid — известный ли scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeProject, ScopePage, ScopeTeam, ScopeWorkspace:
		return true
	}
	return false
}

// Роли персонального членства (project/page).
type PersonalRole string

const (
	PersonalAdmin  PersonalRole = "ADMIN"
	PersonalMember PersonalRole = "MEMBER"
	PersonalViewer PersonalRole = "VIEWER"
)

// Роли в команде.
type TeamRole string

const (
	TeamRoleOwner  TeamRole = "OWNER"
	TeamRoleAdmin  TeamRole = "ADMIN"
	TeamRoleMember TeamRole = "MEMBER"
)

// NormalizeRole приводит роль к верхнему регистру и проверяет её для scope.
// Пустая роль → MEMBER. OWNER через приглашение не выдаётся.
func NormalizeRole(scope Scope, role string) (string, bool) {
	r := strings.ToUpper(strings.TrimSpace(role))
	if r == "" {
		return string(PersonalMember), true
	}
	if scope.Personal() {
		switch PersonalRole(r) {
		case PersonalAdmin, PersonalMember, PersonalViewer:
			return r, true
		}
		return "", false
	}
	switch TeamRole(r) {
	case TeamRoleAdmin, TeamRoleMember:
		return r, true
	}
	return "", false
}
