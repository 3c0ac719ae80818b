package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/trezcool/masomo-portal/apps/portal/di"
	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/account"
	"github.com/trezcool/masomo-portal/core/chapter"
	"github.com/trezcool/masomo-portal/core/course"
	"github.com/trezcool/masomo-portal/core/evaluation"
	"github.com/trezcool/masomo-portal/core/formation"
	"github.com/trezcool/masomo-portal/core/resource"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

const defaultReportMonths = 6

type commandLine struct {
	deps di.Deps
	out  io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -email EMAIL                      - log in (the password is prompted)")
	fmt.Fprintln(cli.out, "  logout                                  - log out")
	fmt.Fprintln(cli.out, "  whoami                                  - show the logged in user")
	fmt.Fprintln(cli.out, "  courses [-mine] [-search QUERY]         - list or search courses")
	fmt.Fprintln(cli.out, "  course-add -title T -formation ID [-image FILE]")
	fmt.Fprintln(cli.out, "  course-rm -id ID [-force]               - delete a course (-force: with its chapters)")
	fmt.Fprintln(cli.out, "  formations [-category ID]               - list formations")
	fmt.Fprintln(cli.out, "  categories                              - list categories")
	fmt.Fprintln(cli.out, "  chapters -course ID                     - list the chapters of a course")
	fmt.Fprintln(cli.out, "  chapter-read -id ID                     - mark a chapter as read")
	fmt.Fprintln(cli.out, "  enroll -formation ID                    - enroll in a formation")
	fmt.Fprintln(cli.out, "  enrollments [-all]                      - list my (or all) enrollments")
	fmt.Fprintln(cli.out, "  evaluate -course ID -student ID -grade G [-comment C]")
	fmt.Fprintln(cli.out, "  stats [-months N]                       - users activity and global stats")
	fmt.Fprintln(cli.out, "  stats-report -to EMAIL [-months N] [-attach FILE] - email the stats report")
	fmt.Fprintln(cli.out, "  theme [-set light|dark]                 - show or change the theme")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// parse parses the command flags; -h and missing required flags return errHelp.
func parse(fs *flag.FlagSet, args []string, required ...string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}
	for _, name := range required {
		if f := fs.Lookup(name); f == nil || f.Value.String() == f.DefValue {
			fs.Usage()
			return errHelp
		}
	}
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()
	cmdArgs := args[2:]

	switch args[1] {
	case "login":
		fs := cli.newFlagSet("login")
		email := fs.String("email", "", "The user's email. The password will be prompted next.")
		if err := parse(fs, cmdArgs, "email"); err != nil {
			return err
		}
		fmt.Fprint(cli.out, "Mot de passe:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			fs.Usage()
			return errHelp
		}
		return cli.login(ctx, *email, string(pwd))

	case "logout":
		if err := cli.deps.Account.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "Déconnecté")
		return nil

	case "whoami":
		return cli.whoami(ctx)

	case "courses":
		fs := cli.newFlagSet("courses")
		mine := fs.Bool("mine", false, "Only my courses (teachers: taught, students: enrolled).")
		query := fs.String("search", "", "Fuzzy search on the course titles.")
		if err := parse(fs, cmdArgs); err != nil {
			return err
		}
		return cli.courses(ctx, *mine, *query)

	case "course-add":
		fs := cli.newFlagSet("course-add")
		title := fs.String("title", "", "The course title.")
		formationID := fs.Int("formation", 0, "The formation id.")
		image := fs.String("image", "", "Path to the course image.")
		if err := parse(fs, cmdArgs, "title", "formation"); err != nil {
			return err
		}
		return cli.addCourse(ctx, course.Form{Title: *title, FormationID: *formationID}, *image)

	case "course-rm":
		fs := cli.newFlagSet("course-rm")
		id := fs.Int("id", 0, "The course id.")
		force := fs.Bool("force", false, "Also delete the chapters of the course.")
		if err := parse(fs, cmdArgs, "id"); err != nil {
			return err
		}
		if err := cli.deps.Courses.Delete(ctx, strconv.Itoa(*id), resource.DeleteOptions{Force: *force}); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "Cours %d supprimé\n", *id)
		return nil

	case "formations":
		fs := cli.newFlagSet("formations")
		categoryID := fs.Int("category", 0, "Only the formations of this category.")
		if err := parse(fs, cmdArgs); err != nil {
			return err
		}
		return cli.formations(ctx, *categoryID)

	case "categories":
		return cli.categories(ctx)

	case "chapters":
		fs := cli.newFlagSet("chapters")
		courseID := fs.Int("course", 0, "The course id.")
		if err := parse(fs, cmdArgs, "course"); err != nil {
			return err
		}
		return cli.chapters(ctx, *courseID)

	case "chapter-read":
		fs := cli.newFlagSet("chapter-read")
		id := fs.Int("id", 0, "The chapter id.")
		if err := parse(fs, cmdArgs, "id"); err != nil {
			return err
		}
		return cli.markChapterRead(ctx, *id)

	case "enroll":
		fs := cli.newFlagSet("enroll")
		formationID := fs.Int("formation", 0, "The formation id.")
		if err := parse(fs, cmdArgs, "formation"); err != nil {
			return err
		}
		e, err := cli.deps.Enrollments.Enroll(ctx, *formationID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "Inscription %d (%s)\n", e.ID, e.Status)
		return nil

	case "enrollments":
		fs := cli.newFlagSet("enrollments")
		all := fs.Bool("all", false, "All the enrollments (admins).")
		if err := parse(fs, cmdArgs); err != nil {
			return err
		}
		return cli.enrollments(ctx, *all)

	case "evaluate":
		fs := cli.newFlagSet("evaluate")
		courseID := fs.Int("course", 0, "The course id.")
		studentID := fs.Int("student", 0, "The student id.")
		grade := fs.Float64("grade", -1, "The grade, from 0 to 20.")
		comment := fs.String("comment", "", "An optional comment.")
		if err := parse(fs, cmdArgs, "course", "student", "grade"); err != nil {
			return err
		}
		return cli.evaluate(ctx, *courseID, *studentID, evaluation.Form{Grade: *grade, Comment: *comment})

	case "stats":
		fs := cli.newFlagSet("stats")
		months := fs.Int("months", defaultReportMonths, "Number of months of activity.")
		if err := parse(fs, cmdArgs); err != nil {
			return err
		}
		return cli.stats(ctx, *months)

	case "stats-report":
		fs := cli.newFlagSet("stats-report")
		to := fs.String("to", "", "The recipient email.")
		months := fs.Int("months", defaultReportMonths, "Number of months of activity.")
		attach := fs.String("attach", "", "A file to attach to the report.")
		if err := parse(fs, cmdArgs, "to"); err != nil {
			return err
		}
		return cli.sendStatsReport(ctx, *to, *months, *attach)

	case "theme":
		fs := cli.newFlagSet("theme")
		set := fs.String("set", "", "light or dark")
		if err := parse(fs, cmdArgs); err != nil {
			return err
		}
		if *set != "" {
			if err := cli.deps.Session.SetTheme(ctx, *set); err != nil {
				return err
			}
		}
		fmt.Fprintf(cli.out, "Thème: %s\n", cli.deps.Session.Theme(ctx))
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) table() *tabwriter.Writer {
	return tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
}

func (cli *commandLine) validate(form interface{}) error {
	return core.ValidateStruct(cli.deps.Validate, cli.deps.Translator, form)
}

// Account

func (cli *commandLine) login(ctx context.Context, email, pwd string) error {
	creds := account.Credentials{Email: email, Password: pwd}
	if err := cli.validate(creds); err != nil {
		return err
	}
	usr, err := cli.deps.Account.Login(ctx, creds)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Connecté en tant que %s (%s)\n", usr.Name, usr.Role)
	return nil
}

func (cli *commandLine) whoami(ctx context.Context) error {
	usr, err := cli.deps.Account.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s <%s> (%s)\n", usr.Name, usr.Email, usr.Role)
	return nil
}

// Courses

func (cli *commandLine) courses(ctx context.Context, mine bool, query string) error {
	list := cli.deps.Courses.Client
	if mine {
		list = cli.deps.Courses.Mine()
	}
	courses, err := list.Fetch(ctx)
	if err != nil {
		return err
	}

	if query != "" {
		// the search runs on the full list
		if mine {
			if _, err = cli.deps.Courses.Fetch(ctx); err != nil {
				return err
			}
		}
		results, err := cli.deps.Courses.Search(ctx, cli.deps.Session, query)
		if err != nil {
			return err
		}
		courses = make([]course.Course, 0, len(results))
		for _, r := range results {
			courses = append(courses, r.Course)
		}
	}

	if len(courses) == 0 {
		fmt.Fprintln(cli.out, "Aucun cours")
		return nil
	}
	w := cli.table()
	fmt.Fprintln(w, "ID\tTITRE\tFORMATION")
	for _, c := range courses {
		fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Title, nullIntString(c.FormationID.Int, c.FormationID.Valid))
	}
	return w.Flush()
}

func (cli *commandLine) addCourse(ctx context.Context, form course.Form, imagePath string) error {
	if err := cli.validate(form); err != nil {
		return err
	}
	var image *resource.File
	if imagePath != "" {
		f, err := os.Open(imagePath)
		if err != nil {
			return err
		}
		defer f.Close()
		image = &resource.File{Field: "image", Name: filepath.Base(imagePath), Content: f}
	}
	crs, err := cli.deps.Courses.Save(ctx, "", form, image)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Cours %d créé: %s\n", crs.ID, crs.Title)
	return nil
}

// Catalog

func (cli *commandLine) formations(ctx context.Context, categoryID int) error {
	var (
		formations []formation.Formation
		err        error
	)
	if categoryID > 0 {
		formations, err = cli.deps.Formations.ByCategory(ctx, categoryID)
	} else {
		formations, err = cli.deps.Formations.Fetch(ctx)
	}
	if err != nil {
		return err
	}

	w := cli.table()
	fmt.Fprintln(w, "ID\tTITRE\tNIVEAU\tDURÉE\tPRIX\tCOURS")
	for _, f := range formations {
		fmt.Fprintf(w, "%d\t%s\t%s\t%dh\t%.2f\t%d\n", f.ID, f.Title, f.DifficultyLevel, f.DurationHours, f.Price, f.CoursesCount)
	}
	return w.Flush()
}

func (cli *commandLine) categories(ctx context.Context) error {
	cats, err := cli.deps.Categories.Fetch(ctx)
	if err != nil {
		return err
	}
	w := cli.table()
	fmt.Fprintln(w, "ID\tNOM\tFORMATIONS")
	for _, c := range cats {
		fmt.Fprintf(w, "%d\t%s\t%d\n", c.ID, c.Nom, c.FormationsCount)
	}
	return w.Flush()
}

func (cli *commandLine) chapters(ctx context.Context, courseID int) error {
	client, err := chapter.NewClient(cli.deps.Transport, cli.deps.Toaster, courseID)
	if err != nil {
		return err
	}
	if _, err = client.Fetch(ctx); err != nil {
		return err
	}

	w := cli.table()
	fmt.Fprintln(w, "ID\t#\tTITRE\tDURÉE\tLU")
	for _, ch := range client.Ordered() {
		read := ""
		if ch.IsRead {
			read = "✔"
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%d min\t%s\n", ch.ID, ch.OrderIndex, ch.Titre, ch.DurationMinutes, read)
	}
	if err = w.Flush(); err != nil {
		return err
	}
	read, pct := client.Progress()
	fmt.Fprintf(cli.out, "Progression: %d/%d (%.0f%%)\n", read, len(client.Items()), pct)
	return nil
}

func (cli *commandLine) markChapterRead(ctx context.Context, id int) error {
	// the course is not needed to mark a chapter
	client, err := chapter.NewClient(cli.deps.Transport, cli.deps.Toaster, 0)
	if err != nil {
		return err
	}
	if err = client.MarkRead(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Chapitre %d lu\n", id)
	return nil
}

// Learning

func (cli *commandLine) enrollments(ctx context.Context, all bool) error {
	list := cli.deps.Enrollments.Mine()
	if all {
		list = cli.deps.Enrollments.Client
	}
	enrollments, err := list.Fetch(ctx)
	if err != nil {
		return err
	}
	if len(enrollments) == 0 {
		fmt.Fprintln(cli.out, "Aucune inscription")
		return nil
	}

	w := cli.table()
	fmt.Fprintln(w, "ID\tFORMATION\tÉLÈVE\tSTATUT\tDATE")
	for _, e := range enrollments {
		title := strconv.Itoa(e.FormationID)
		if e.Formation != nil {
			title = e.Formation.Title
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", e.ID, title, nullIntString(e.UserID.Int, e.UserID.Valid), e.Status, formatDate(e.EnrolledAt))
	}
	return w.Flush()
}

func (cli *commandLine) evaluate(ctx context.Context, courseID, studentID int, form evaluation.Form) error {
	if err := cli.validate(form); err != nil {
		return err
	}
	eval, err := cli.deps.Evaluations.Save(ctx, courseID, studentID, form)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Cours %d, élève %d: %g/%d\n", eval.CourseID, eval.StudentID, eval.Grade, int(core.MaxGrade))
	return nil
}

// Stats

func (cli *commandLine) stats(ctx context.Context, months int) error {
	report, err := cli.deps.Stats.Report(ctx, months)
	if err != nil {
		return err
	}
	s := report.Summary
	fmt.Fprintf(cli.out, "Utilisateurs: %d, actifs: %d (%g%%), inactifs: %d (%g%%), nouveaux ce mois: %d\n",
		s.Total, s.Active, s.ActivePercent, s.Inactive, s.InactivePercent, s.NewUsersThisMonth)

	w := cli.table()
	fmt.Fprintln(w, "RÔLE\tUTILISATEURS")
	for _, rc := range report.Roles {
		fmt.Fprintf(w, "%s\t%d\n", rc.Role, rc.Count)
	}
	fmt.Fprintln(w, "\t")
	fmt.Fprintln(w, "MOIS\tACTIFS\tINSCRITS")
	for _, b := range report.Monthly {
		fmt.Fprintf(w, "%s\t%d\t%d\n", b.Month, b.Active, b.Signups)
	}
	if err = w.Flush(); err != nil {
		return err
	}

	g := report.Global
	fmt.Fprintf(cli.out, "Formations: %d, cours: %d, chapitres: %d, inscriptions: %d\n",
		g.TotalFormations, g.TotalCourses, g.TotalChapters, g.TotalEnrollments)
	fmt.Fprintf(cli.out, "Taux de réussite: %g%%, moyenne: %g/%d\n", g.CompletionRate, g.AverageGrade, int(core.MaxGrade))
	return nil
}

func (cli *commandLine) sendStatsReport(ctx context.Context, to string, months int, attach string) error {
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "to", Error: "adresse email invalide"})
	}
	report, err := cli.deps.Stats.Report(ctx, months)
	if err != nil {
		return err
	}
	msg, err := report.EmailMessage(*addr)
	if err != nil {
		return err
	}
	if attach != "" {
		if err = msg.AttachFile(attach); err != nil {
			return err
		}
	}
	if err = cli.deps.Mailer.SendMessages(ctx, msg); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Rapport envoyé à %s\n", addr.Address)
	return nil
}

func nullIntString(i int, valid bool) string {
	if !valid {
		return "-"
	}
	return strconv.Itoa(i)
}

func formatDate(t core.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02/01/2006")
}
