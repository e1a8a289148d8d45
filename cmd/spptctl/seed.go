package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sppt/server/internal/auth"
	"github.com/sppt/server/internal/model"
	"github.com/sppt/server/internal/repo"
)

const demoBusinessName = "Demo Business"

type seedUser struct {
	Email      string
	Password   string
	Name       string
	LastName   string
	Role       model.Role
	InBusiness bool
}

// demoUsers mirrors the accounts the web client's fixtures log in with.
var demoUsers = []seedUser{
	{"superadmin@sppt.com", "SuperAdmin123!", "Super", "Admin", model.RoleSuperAdmin, false},
	{"owner@example.com", "owner123", "John", "Owner", model.RoleOwner, false},
	{"admin@example.com", "admin123", "Admin", "Owner", model.RoleOwner, true},
	{"coowner@example.com", "coowner123", "Jane", "CoOwner", model.RoleCoOwner, true},
	{"employee@example.com", "employee123", "Mike", "Employee", model.RoleEmployee, true},
}

type seedStaff interface {
	GetByEmail(ctx context.Context, email string) (model.StaffUser, error)
	Create(ctx context.Context, u model.StaffUser) (model.StaffUser, error)
}

type seedBusinesses interface {
	Create(ctx context.Context, name string) (model.Business, error)
	List(ctx context.Context) ([]model.Business, error)
}

type seeder struct {
	staff      seedStaff
	businesses seedBusinesses
	hasher     auth.PasswordHasher
	out        io.Writer
}

// run creates whatever demo rows are missing. Running it twice changes nothing.
func (s *seeder) run(ctx context.Context, users []seedUser) (created int, err error) {
	biz, err := s.demoBusiness(ctx)
	if err != nil {
		return 0, err
	}
	for _, su := range users {
		_, err := s.staff.GetByEmail(ctx, su.Email)
		if err == nil {
			fmt.Fprintf(s.out, "exists   %-12s %s\n", su.Role, su.Email)
			continue
		}
		if !errors.Is(err, repo.ErrUserNotFound) {
			return created, fmt.Errorf("lookup %s: %w", su.Email, err)
		}

		hash, err := s.hasher.Hash(su.Password)
		if err != nil {
			return created, err
		}
		u := model.StaffUser{
			Email:        su.Email,
			PasswordHash: hash,
			Name:         su.Name,
			LastName:     su.LastName,
			Role:         su.Role,
		}
		if su.InBusiness {
			id := biz
			u.BusinessID = &id
		}
		if _, err := s.staff.Create(ctx, u); err != nil {
			return created, fmt.Errorf("create %s: %w", su.Email, err)
		}
		created++
		fmt.Fprintf(s.out, "created  %-12s %s / %s\n", su.Role, su.Email, su.Password)
	}
	return created, nil
}

func (s *seeder) demoBusiness(ctx context.Context) (uuid.UUID, error) {
	all, err := s.businesses.List(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	for _, b := range all {
		if b.Name == demoBusinessName {
			return b.ID, nil
		}
	}
	b, err := s.businesses.Create(ctx, demoBusinessName)
	if err != nil {
		return uuid.Nil, err
	}
	fmt.Fprintf(s.out, "created  business     %s\n", demoBusinessName)
	return b.ID, nil
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the super admin and demo business accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		database, err := openDB(cmd.Context(), log)
		if err != nil {
			return err
		}
		defer database.Close()

		s := &seeder{
			staff:      repo.NewStaffRepo(database),
			businesses: repo.NewBusinessRepo(database),
			hasher:     auth.NewBcryptHasher(auth.DefaultBcryptCost),
			out:        cmd.OutOrStdout(),
		}
		n, err := s.run(cmd.Context(), demoUsers)
		if err != nil {
			return err
		}
		cmd.Printf("Seed completed, %d user(s) created\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
