// Package identity models the two kinds of accounts that can operate the
// device: individual farmers and barangay staff. Both expose the same small
// capability surface so callers never need to branch on concrete types.
package identity

import "palay-drying-backend/internal/model"

// Role tags an account with its kind.
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleStaff  Role = "staff"
)

// Identity is the shared capability surface over both account kinds.
type Identity interface {
	Role() Role
	AccountID() int64
	DisplayName() string
	// LocalityRef returns the barangay reference, if any.
	LocalityRef() (int64, bool)
}

type farmerIdentity struct {
	f model.Farmer
}

func (fi farmerIdentity) Role() Role          { return RoleFarmer }
func (fi farmerIdentity) AccountID() int64    { return fi.f.ID }
func (fi farmerIdentity) DisplayName() string { return fi.f.FullName }

func (fi farmerIdentity) LocalityRef() (int64, bool) {
	if fi.f.BarangayID == nil {
		return 0, false
	}
	return *fi.f.BarangayID, true
}

type staffIdentity struct {
	s model.StaffUser
}

func (si staffIdentity) Role() Role          { return RoleStaff }
func (si staffIdentity) AccountID() int64    { return si.s.ID }
func (si staffIdentity) DisplayName() string { return si.s.BarangayName }

func (si staffIdentity) LocalityRef() (int64, bool) {
	if si.s.BarangayID == nil {
		return 0, false
	}
	return *si.s.BarangayID, true
}

// ForFarmer wraps a farmer row as an Identity.
func ForFarmer(f model.Farmer) Identity { return farmerIdentity{f: f} }

// ForStaff wraps a staff row as an Identity.
func ForStaff(s model.StaffUser) Identity { return staffIdentity{s: s} }
