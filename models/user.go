package models

// Staff roles.
const (
	RoleSuperAdmin = "super_admin"
	RoleDeptAdmin  = "dept_admin"
)

// Municipal departments reports get assigned to.
const (
	DeptRoads      = "Roads Dept"
	DeptSanitation = "Sanitation Dept"
	DeptParks      = "Parks Dept"
	DeptWater      = "Water Dept"
)

// StaffAccount is a department staff login as the roster endpoint returns
// it. Passwords are write-only and never appear here.
type StaffAccount struct {
	Username   string `json:"username"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
}
