// Package apitest provides an in-memory stand-in for the municipal backend.
// It implements the same HTTP contract the real portal serves, so the API
// client can be exercised end to end without network access or a running
// classification service. Classification is faked from the upload filename.
package apitest

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"civiclens/portal/models"
)

const (
	// SeedUsername and SeedPassword are the pre-provisioned super admin.
	SeedUsername = "admin"
	SeedPassword = "admin123"

	nearbyRadiusMeters    = 1000.0
	duplicateRadiusMeters = 100.0
	duplicateWindow       = 7 * 24 * time.Hour
)

type account struct {
	Password   string
	Role       string
	Department string
}

type storedReport struct {
	models.Report
	created time.Time
}

// Server holds the fake backend's state. All state is in memory and gone
// when the server goes away.
type Server struct {
	router *mux.Router

	mu       sync.Mutex
	now      func() time.Time
	accounts map[string]account
	tokens   map[string]string
	reports  []storedReport
}

// NewServer creates a fake backend seeded with the super admin account.
func NewServer() *Server {
	s := &Server{
		now: time.Now,
		accounts: map[string]account{
			SeedUsername: {Password: SeedPassword, Role: models.RoleSuperAdmin},
		},
		tokens: make(map[string]string),
	}

	r := mux.NewRouter()
	r.HandleFunc("/token", s.handleToken).Methods("POST")
	r.HandleFunc("/report", s.handleSubmit).Methods("POST")
	r.HandleFunc("/public/nearby", s.handleNearby).Methods("GET")
	r.HandleFunc("/admin/reports", s.handleAdminReports).Methods("GET")
	r.HandleFunc("/admin/report/{id}/status", s.handleUpdateStatus).Methods("PATCH")
	r.HandleFunc("/admin/users", s.handleUsers).Methods("GET")
	r.HandleFunc("/admin/create-user", s.handleCreateUser).Methods("POST")
	r.HandleFunc("/admin/user/{username}", s.handleUpdateUser).Methods("PATCH")
	r.HandleFunc("/admin/user/{username}", s.handleDeleteUser).Methods("DELETE")
	s.router = r

	return s
}

// Handler returns the HTTP handler, suitable for httptest.NewServer or
// http.ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetClock overrides the server's notion of now. Tests use this to age
// reports past the duplicate window.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// AddAccount provisions a staff account directly, bypassing the HTTP
// surface.
func (s *Server) AddAccount(username, password, role, department string) {
	s.mu.Lock()
	s.accounts[username] = account{Password: password, Role: role, Department: department}
	s.mu.Unlock()
}

// AddReport inserts a report directly, timestamped now.
func (s *Server) AddReport(report models.Report) {
	s.mu.Lock()
	created := s.now()
	if report.Timestamp == "" {
		report.Timestamp = created.UTC().Format(time.RFC3339)
	}
	// Newest first, matching the real backend's ordering.
	s.reports = append([]storedReport{{Report: report, created: created}}, s.reports...)
	s.mu.Unlock()
}

// Reports returns a snapshot of all stored reports, newest first.
func (s *Server) Reports() []models.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Report, len(s.reports))
	for i, r := range s.reports {
		out[i] = r.Report
	}
	return out
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	s.mu.Lock()
	acct, ok := s.accounts[username]
	if !ok || acct.Password != password {
		s.mu.Unlock()
		http.Error(w, "Incorrect username or password", http.StatusUnauthorized)
		return
	}
	token := uuid.NewString()
	s.tokens[token] = username
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"access_token": token,
		"token_type":   "bearer",
		"role":         acct.Role,
		"department":   acct.Department,
	})
}

// authenticate resolves the bearer token to an account. The zero account
// and false mean the request carried no valid session.
func (s *Server) authenticate(r *http.Request) (string, account, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", account{}, false
	}
	token := strings.TrimPrefix(header, "Bearer ")

	s.mu.Lock()
	defer s.mu.Unlock()
	username, ok := s.tokens[token]
	if !ok {
		return "", account{}, false
	}
	acct, ok := s.accounts[username]
	return username, acct, ok
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file", http.StatusBadRequest)
		return
	}
	file.Close()

	lat, errLat := strconv.ParseFloat(r.FormValue("latitude"), 64)
	lon, errLon := strconv.ParseFloat(r.FormValue("longitude"), 64)
	if errLat != nil || errLon != nil {
		http.Error(w, "Invalid coordinates", http.StatusBadRequest)
		return
	}

	issue := classify(header.Filename)
	w.Header().Set("Content-Type", "application/json")
	if issue == "" {
		json.NewEncoder(w).Encode(map[string]string{"status": "rejected"})
		return
	}

	department := assignDepartment(issue)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Same category close by within the merge window folds into the
	// existing report instead of opening a new one.
	cutoff := s.now().Add(-duplicateWindow)
	for _, existing := range s.reports {
		if existing.Category != issue || existing.created.Before(cutoff) {
			continue
		}
		if haversineMeters(lat, lon, existing.Latitude, existing.Longitude) <= duplicateRadiusMeters {
			json.NewEncoder(w).Encode(map[string]string{
				"status":      "duplicate",
				"original_id": existing.ID,
				"issue":       issue,
				"assigned_to": existing.Department,
			})
			return
		}
	}

	created := s.now()
	report := models.Report{
		ID:         strings.ReplaceAll(uuid.NewString(), "-", ""),
		Category:   issue,
		Latitude:   lat,
		Longitude:  lon,
		Department: department,
		Status:     models.StatusSubmitted,
		Timestamp:  created.UTC().Format(time.RFC3339),
	}
	s.reports = append([]storedReport{{Report: report, created: created}}, s.reports...)

	json.NewEncoder(w).Encode(map[string]string{
		"status":      "success",
		"report_id":   report.ID,
		"issue":       issue,
		"assigned_to": department,
	})
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		http.Error(w, "Invalid coordinates", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	nearby := []models.Report{}
	for _, report := range s.reports {
		if haversineMeters(lat, lon, report.Latitude, report.Longitude) <= nearbyRadiusMeters {
			nearby = append(nearby, report.Report)
		}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(nearby)
}

func (s *Server) handleAdminReports(w http.ResponseWriter, r *http.Request) {
	_, acct, ok := s.authenticate(r)
	if !ok {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	scoped := []models.Report{}
	for _, report := range s.reports {
		// dept_admin sees only their department's reports.
		if acct.Role != models.RoleSuperAdmin && report.Department != acct.Department {
			continue
		}
		scoped = append(scoped, report.Report)
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(scoped)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	_, _, ok := s.authenticate(r)
	if !ok {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Status == "" {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reports {
		if s.reports[i].ID == id {
			s.reports[i].Status = payload.Status
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(s.reports[i].Report)
			return
		}
	}
	http.Error(w, "Report not found", http.StatusNotFound)
}

// requireSuperAdmin gates the personnel routes.
func (s *Server) requireSuperAdmin(w http.ResponseWriter, r *http.Request) bool {
	_, acct, ok := s.authenticate(r)
	if !ok {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return false
	}
	if acct.Role != models.RoleSuperAdmin {
		http.Error(w, "Super admin access required", http.StatusForbidden)
		return false
	}
	return true
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if !s.requireSuperAdmin(w, r) {
		return
	}

	s.mu.Lock()
	users := []models.StaffAccount{}
	for username, acct := range s.accounts {
		users = append(users, models.StaffAccount{
			Username:   username,
			Role:       acct.Role,
			Department: acct.Department,
		})
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireSuperAdmin(w, r) {
		return
	}

	var payload struct {
		Username   string `json:"username"`
		Password   string `json:"password"`
		Role       string `json:"role"`
		Department string `json:"department"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if payload.Username == "" || payload.Password == "" {
		http.Error(w, "Username and password required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[payload.Username]; exists {
		http.Error(w, "Username exists", http.StatusBadRequest)
		return
	}
	s.accounts[payload.Username] = account{
		Password:   payload.Password,
		Role:       payload.Role,
		Department: payload.Department,
	}

	log.Printf("Fake backend: created user %s (%s)", payload.Username, payload.Role)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": fmt.Sprintf("User %s created", payload.Username)})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireSuperAdmin(w, r) {
		return
	}

	var payload struct {
		Password   string `json:"password"`
		Department string `json:"department"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	username := mux.Vars(r)["username"]

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, exists := s.accounts[username]
	if !exists {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	if payload.Password != "" {
		acct.Password = payload.Password
	}
	if payload.Department != "" {
		acct.Department = payload.Department
	}
	s.accounts[username] = acct

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "User updated"})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireSuperAdmin(w, r) {
		return
	}

	username := mux.Vars(r)["username"]

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, exists := s.accounts[username]
	if !exists {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	if acct.Role == models.RoleSuperAdmin {
		http.Error(w, "Cannot delete super admin", http.StatusForbidden)
		return
	}
	delete(s.accounts, username)

	// Any live sessions for the account die with it.
	for token, owner := range s.tokens {
		if owner == username {
			delete(s.tokens, token)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "User deleted"})
}

// classify fakes the image classifier by scanning the filename for issue
// keywords. An empty string means no civic issue was detected.
func classify(filename string) string {
	name := strings.ToLower(filename)
	for _, issue := range []string{"pothole", "major_crack", "overflowing", "garbage_pile", "full"} {
		if strings.Contains(name, issue) {
			return issue
		}
	}
	return ""
}

func assignDepartment(issue string) string {
	switch issue {
	case "pothole", "major_crack":
		return models.DeptRoads
	case "overflowing", "garbage_pile", "full":
		return models.DeptSanitation
	default:
		return "General"
	}
}

const earthRadiusMeters = 6371000.0

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}
