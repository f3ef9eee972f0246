package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"civiclens/portal/admin"
	"civiclens/portal/api"
	"civiclens/portal/apitest"
	"civiclens/portal/config"
	"civiclens/portal/feed"
	"civiclens/portal/geo"
	"civiclens/portal/models"
	"civiclens/portal/notify"
	"civiclens/portal/security"
	"civiclens/portal/session"
	"civiclens/portal/submit"
)

func main() {
	fakeAddr := flag.String("fake", "", "Serve the in-memory fake backend on this address instead of running a command")
	flag.Usage = usage
	flag.Parse()

	if *fakeAddr != "" {
		log.Printf("Starting fake backend on %s (seed login %s/%s)...", *fakeAddr, apitest.SeedUsername, apitest.SeedPassword)
		log.Fatal(http.ListenAndServe(*fakeAddr, apitest.NewServer().Handler()))
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()

	store, err := session.Open(cfg.SessionDBPath, security.NewTokenCipher(cfg.TokenKey))
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	hub := notify.NewHub(cfg.ToastTTL)
	client := api.NewClient(cfg.APIBaseURL, store, cfg.RequestTimeout)
	guard := session.NewGuard(store, client, hub)

	acq := geo.NewAcquirer(locationProvider(), cfg.LocationWait)
	nearby := feed.New(client)
	acq.OnLock(func(pos geo.Position) {
		nearby.Refresh(context.Background(), pos.Latitude, pos.Longitude)
	})

	pipeline := submit.NewPipeline(client, acq, hub)
	pipeline.OnSuccess(func(lat, lon float64) {
		nearby.Refresh(context.Background(), lat, lon)
	})

	app := &app{
		store:    store,
		guard:    guard,
		acquirer: acq,
		feed:     nearby,
		pipeline: pipeline,
		reports:  admin.NewReportsManager(client, hub),
		users:    admin.NewUserManager(client, hub),
	}

	err = app.run(context.Background(), args[0], args[1:])
	printToasts(hub)
	if err != nil {
		log.Fatal(err)
	}
}

// locationProvider picks the geolocation capability for this run. Fixed
// coordinates come from the environment; without them the device simply has
// no location support.
func locationProvider() geo.Provider {
	latEnv, lonEnv := os.Getenv("CIVIC_LAT"), os.Getenv("CIVIC_LON")
	if latEnv == "" || lonEnv == "" {
		return geo.UnsupportedProvider{}
	}

	lat, errLat := strconv.ParseFloat(latEnv, 64)
	lon, errLon := strconv.ParseFloat(lonEnv, 64)
	if errLat != nil || errLon != nil {
		log.Println("Warning: invalid CIVIC_LAT/CIVIC_LON, location disabled")
		return geo.UnsupportedProvider{}
	}
	return geo.StaticProvider{Position: geo.Position{Latitude: lat, Longitude: lon}}
}

type app struct {
	store    *session.Store
	guard    *session.Guard
	acquirer *geo.Acquirer
	feed     *feed.Feed
	pipeline *submit.Pipeline
	reports  *admin.ReportsManager
	users    *admin.UserManager
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.guard.Logout()
	case "submit":
		return a.submit(ctx, args)
	case "nearby":
		return a.nearby(ctx)
	case "reports":
		return a.listReports(ctx, args)
	case "set-status":
		return a.setStatus(ctx, args)
	case "users":
		return a.listUsers(ctx)
	case "create-user":
		return a.createUser(ctx, args)
	case "update-user":
		return a.updateUser(ctx, args)
	case "delete-user":
		return a.deleteUser(ctx, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: login <username> <password>")
	}
	if err := a.guard.Login(ctx, args[0], args[1]); err != nil {
		return err
	}

	sess := a.store.Session()
	if sess.IsSuperAdmin() {
		log.Printf("Logged in as %s (super admin)", args[0])
	} else {
		log.Printf("Logged in as %s (%s)", args[0], sess.Department)
	}
	return nil
}

func (a *app) submit(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: submit <image-path>")
	}
	path := args[0]

	image, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading image: %w", err)
	}
	if err := a.pipeline.Stage(filepath.Base(path), image, path); err != nil {
		return err
	}

	if _, err := a.acquirer.Acquire(ctx); err != nil {
		log.Printf("%s %s", a.acquirer.Status(), geo.Remediation(err))
	}

	result, err := a.pipeline.Submit(ctx, confirmPrompt("Location unknown. Submit without coordinates?"))
	if err != nil {
		return err
	}

	fmt.Println(result.Headline())
	switch result.Outcome {
	case submit.StateAccepted:
		fmt.Printf("  Report ID:   %s\n", models.ShortID(result.ReportID))
		fmt.Printf("  Issue:       %s\n", result.Issue)
		fmt.Printf("  Assigned to: %s\n", result.AssignedTo)
	case submit.StateDuplicate:
		fmt.Printf("  Matches existing report %s\n", models.ShortID(result.ReportID))
	case submit.StateRejected:
		fmt.Println("  The image was not recognized as a civic issue.")
	}
	return nil
}

func (a *app) nearby(ctx context.Context) error {
	pos, err := a.acquirer.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%s: %s", a.acquirer.Status(), geo.Remediation(err))
	}

	// The lock hook already refreshed the feed at the acquired position.
	reports := a.feed.Reports()
	if len(reports) == 0 {
		fmt.Printf("No reports near (%.4f, %.4f)\n", pos.Latitude, pos.Longitude)
		return nil
	}
	for _, r := range reports {
		fmt.Printf("%s  %-14s %-12s %s\n", r.ShortID(), r.Category, r.Status, r.Timestamp)
	}
	return nil
}

func (a *app) listReports(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reports", flag.ContinueOnError)
	status := fs.String("status", models.FilterAll, "Filter by status")
	category := fs.String("category", models.FilterAll, "Filter by category")
	search := fs.String("search", "", "Search by report id or city")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.guard.Require(); err != nil {
		return err
	}
	if err := a.reports.Load(ctx); err != nil {
		return err
	}

	a.reports.SetFilter(models.ReportFilter{Status: *status, Category: *category, Search: *search})
	for _, r := range a.reports.Filtered() {
		fmt.Printf("%s  %-14s %-16s %-12s %s\n", r.ShortID(), r.Category, r.Department, r.Status, r.City)
	}
	return nil
}

func (a *app) setStatus(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: set-status <report-id> <status>")
	}
	if err := a.guard.Require(); err != nil {
		return err
	}
	if err := a.reports.Load(ctx); err != nil {
		return err
	}
	return a.reports.SetStatus(ctx, args[0], args[1])
}

func (a *app) listUsers(ctx context.Context) error {
	if err := a.guard.Require(); err != nil {
		return err
	}
	if err := a.users.Load(ctx); err != nil {
		return err
	}
	for _, u := range a.users.Users() {
		fmt.Printf("%-20s %-12s %s\n", u.Username, u.Role, u.Department)
	}
	return nil
}

func (a *app) createUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	role := fs.String("role", models.RoleDeptAdmin, "Account role")
	department := fs.String("department", models.DeptRoads, "Assigned department")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: create-user [-role] [-department] <username> <password>")
	}

	if err := a.guard.Require(); err != nil {
		return err
	}

	a.users.SetDraft(api.NewStaffAccount{
		Username:   fs.Arg(0),
		Password:   fs.Arg(1),
		Role:       *role,
		Department: *department,
	})
	return a.users.Create(ctx)
}

func (a *app) updateUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update-user", flag.ContinueOnError)
	password := fs.String("password", "", "New password (blank keeps the current one)")
	department := fs.String("department", "", "New department (blank keeps the current one)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: update-user [-password] [-department] <username>")
	}

	if err := a.guard.Require(); err != nil {
		return err
	}
	if err := a.users.Load(ctx); err != nil {
		return err
	}

	username := fs.Arg(0)
	if err := a.users.StartEdit(username); err != nil {
		return err
	}

	form := admin.EditForm{Password: *password, Department: *department}
	if form.Department == "" {
		// Keep the current department so only a typed password travels.
		for _, u := range a.users.Users() {
			if u.Username == username {
				form.Department = u.Department
				break
			}
		}
	}
	a.users.SetEditForm(form)
	return a.users.CommitEdit(ctx)
}

func (a *app) deleteUser(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete-user <username>")
	}
	if err := a.guard.Require(); err != nil {
		return err
	}
	if err := a.users.Load(ctx); err != nil {
		return err
	}
	return a.users.Delete(ctx, args[0], confirmPrompt(fmt.Sprintf("Delete user %s?", args[0])))
}

// confirmPrompt returns an interactive y/N gate over stdin.
func confirmPrompt(question string) func() bool {
	return func() bool {
		fmt.Printf("%s [y/N]: ", question)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

// printToasts drains the advisories fired during the command. Publication is
// synchronous, so by the time a command returns everything is buffered.
func printToasts(hub *notify.Hub) {
	for {
		select {
		case ev := <-hub.Events():
			if !ev.Dismissed {
				fmt.Printf("[%s] %s\n", ev.Toast.Kind, ev.Toast.Text)
			}
		default:
			return
		}
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `CivicLens portal client

Usage:
  portal [-fake addr] <command> [args]

Citizen commands:
  submit <image-path>       Submit photographic evidence of a civic issue
  nearby                    List reports near the current location

Session commands:
  login <username> <password>
  logout

Admin commands (require login):
  reports [-status] [-category] [-search]
  set-status <report-id> <status>
  users
  create-user [-role] [-department] <username> <password>
  update-user [-password] [-department] <username>
  delete-user <username>

Flags:`)
	flag.PrintDefaults()
}
