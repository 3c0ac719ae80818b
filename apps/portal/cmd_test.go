package main

import (
	"bytes"
	"net/mail"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/apps/portal/di"
	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/account"
	"github.com/trezcool/masomo-portal/core/category"
	"github.com/trezcool/masomo-portal/core/course"
	"github.com/trezcool/masomo-portal/core/enrollment"
	"github.com/trezcool/masomo-portal/core/evaluation"
	"github.com/trezcool/masomo-portal/core/formation"
	"github.com/trezcool/masomo-portal/core/stats"
	emailsvc "github.com/trezcool/masomo-portal/services/email"
	"github.com/trezcool/masomo-portal/tests"
)

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    []string // substrings of the output
	extra      interface{}
}

type testCLI struct {
	*commandLine
	env    *testutil.Env
	out    *bytes.Buffer
	mailer *emailsvc.ConsoleService
}

func setup(t *testing.T) *testCLI {
	env := testutil.NewEnv(t)

	conf := &core.Config{AppName: "Masomo", TestMode: true}
	conf.DefaultFromEmail = mail.Address{Name: "Masomo", Address: "noreply@masomo.cd"}
	core.ParseEmailTemplates(core.Getwd(), true, core.NopLogger)
	mailer := emailsvc.NewConsoleServiceMock(conf)

	vld, translator := core.NewValidator()
	courses, err := course.NewClient(env.Transport, env.Toaster)
	require.NoError(t, err)
	formations, err := formation.NewClient(env.Transport, env.Toaster)
	require.NoError(t, err)
	categories, err := category.NewClient(env.Transport, env.Toaster)
	require.NoError(t, err)
	enrollments, err := enrollment.NewClient(env.Transport, env.Toaster)
	require.NoError(t, err)

	out := new(bytes.Buffer)
	cli := &commandLine{
		deps: di.Deps{
			Conf:        conf,
			Logger:      core.NopLogger,
			Validate:    vld,
			Translator:  translator,
			Session:     env.Session,
			Transport:   env.Transport,
			Toaster:     env.Toaster,
			Mailer:      mailer,
			Account:     env.Account,
			Courses:     courses,
			Formations:  formations,
			Categories:  categories,
			Enrollments: enrollments,
			Evaluations: evaluation.NewClient(env.Transport, env.Toaster),
			Stats:       stats.NewClient(env.Transport, env.Toaster),
		},
		out: out,
	}
	return &testCLI{commandLine: cli, env: env, out: out, mailer: mailer}
}

func (tc *testCLI) runTests(t *testing.T, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"portal"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if pwd, ok := tt.extra.(string); ok {
				return []byte(pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			tc.out.Reset()
			err := tc.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				require.NoError(t, err, tc.out.String())
			}
			for _, s := range tt.wantOut {
				assert.Contains(t, tc.out.String(), s)
			}
		})
	}
}

func Test_commandLine_account(t *testing.T) {
	cli := setup(t)
	cli.runTests(t, []cliTest{
		{name: "no command", wantErr: errHelp, wantOut: []string{"Usage:"}},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "not logged in", args: []string{"whoami"}, wantErr: core.ErrNoToken},
		{name: "login: no email", args: []string{"login"}, wantErr: errHelp},
		{name: "login: no password", args: []string{"login", "-email", testutil.TeacherEmail}, wantErr: errHelp},
		{name: "login: bad password", args: []string{"login", "-email", testutil.TeacherEmail}, extra: "nope", wantErr: account.ErrAuthenticationFailed},
		{name: "login: invalid email", args: []string{"login", "-email", "awa"}, extra: "password", wantErrStr: "formulaire invalide"},
		{
			name: "login", args: []string{"login", "-email", testutil.TeacherEmail}, extra: "password",
			wantOut: []string{"Connecté en tant que Awa Mbuyi (teacher)"},
		},
		{name: "whoami", args: []string{"whoami"}, wantOut: []string{"Awa Mbuyi <awa@masomo.cd> (teacher)"}},
		{name: "theme", args: []string{"theme"}, wantOut: []string{"Thème: light"}},
		{name: "theme: set", args: []string{"theme", "-set", "DARK"}, wantOut: []string{"Thème: dark"}},
		{name: "theme: unknown", args: []string{"theme", "-set", "pink"}, wantErrStr: `thème inconnu: "pink"`},
		{name: "logout", args: []string{"logout"}, wantOut: []string{"Déconnecté"}},
		{name: "logged out", args: []string{"whoami"}, wantErr: core.ErrNoToken},
	})
}

func Test_commandLine_teacher(t *testing.T) {
	cli := setup(t)
	cli.env.Login(t, testutil.TeacherEmail)

	image := filepath.Join(t.TempDir(), "cover.jpg")
	require.NoError(t, os.WriteFile(image, []byte("jpg"), 0o600))

	cli.runTests(t, []cliTest{
		{name: "courses", args: []string{"courses"}, wantOut: []string{"Algèbre", "Géométrie", "Mécanique"}},
		{name: "my courses", args: []string{"courses", "-mine"}, wantOut: []string{"Algèbre", "Géométrie"}},
		{name: "search", args: []string{"courses", "-search", "geometrie"}, wantOut: []string{"Géométrie"}},
		{name: "search: no match", args: []string{"courses", "-search", "chimie"}, wantOut: []string{"Aucun cours"}},
		{name: "course-add: missing formation", args: []string{"course-add", "-title", "X"}, wantErr: errHelp},
		{name: "course-add: image not found", args: []string{"course-add", "-title", "X", "-formation", "1", "-image", "nope.jpg"}, wantErrStr: "open nope.jpg: no such file or directory"},
		{name: "course-add", args: []string{"course-add", "-title", "Statistiques", "-formation", "1", "-image", image}, wantOut: []string{"Cours 4 créé: Statistiques"}},
		{name: "course-rm: with chapters", args: []string{"course-rm", "-id", "1"}, wantErrStr: "Erreur HTTP: 409"},
		{name: "course-rm: force", args: []string{"course-rm", "-id", "1", "-force"}, wantOut: []string{"Cours 1 supprimé"}},
		{name: "course-rm: not mine", args: []string{"course-rm", "-id", "3"}, wantErrStr: "Erreur HTTP: 403"},
		{name: "evaluate: missing grade", args: []string{"evaluate", "-course", "2", "-student", "5"}, wantErr: errHelp},
		{name: "evaluate: invalid grade", args: []string{"evaluate", "-course", "2", "-student", "5", "-grade", "12.3"}, wantErrStr: "formulaire invalide"},
		{name: "evaluate", args: []string{"evaluate", "-course", "2", "-student", "5", "-grade", "15.5", "-comment", "Bien"}, wantOut: []string{"Cours 2, élève 5: 15.5/20"}},
		{name: "stats: admins only", args: []string{"stats"}, wantErrStr: "Erreur HTTP: 403"},
	})

	var crs course.Course
	for _, c := range cli.deps.Courses.Items() {
		if c.Title == "Statistiques" {
			crs = c
		}
	}
	assert.Equal(t, ".jpg", filepath.Ext(crs.Image.String))
}

func Test_commandLine_student(t *testing.T) {
	cli := setup(t)
	cli.env.Login(t, testutil.StudentEmail)

	cli.runTests(t, []cliTest{
		{name: "categories", args: []string{"categories"}, wantOut: []string{"Sciences", "Langues", "Histoire"}},
		{name: "formations", args: []string{"formations"}, wantOut: []string{"Mathématiques de base", "Physique avancée", "Français écrit"}},
		{name: "formations by category", args: []string{"formations", "-category", "2"}, wantOut: []string{"Français écrit"}},
		{name: "formations: unknown category", args: []string{"formations", "-category", "42"}, wantErrStr: "Erreur HTTP: 404"},
		{name: "chapters: no course", args: []string{"chapters"}, wantErr: errHelp},
		{name: "chapters", args: []string{"chapters", "-course", "1"}, wantOut: []string{"Introduction", "Progression: 1/3 (33%)"}},
		{name: "chapter-read", args: []string{"chapter-read", "-id", "2"}, wantOut: []string{"Chapitre 2 lu"}},
		{name: "chapters: progress", args: []string{"chapters", "-course", "1"}, wantOut: []string{"Progression: 2/3 (67%)"}},
		{name: "enroll", args: []string{"enroll", "-formation", "3"}, wantOut: []string{"(active)"}},
		{name: "enroll twice", args: []string{"enroll", "-formation", "3"}, wantErrStr: "Erreur HTTP: 422"},
		{name: "enrollments", args: []string{"enrollments"}, wantOut: []string{"Mathématiques de base", "completed", "Français écrit"}},
		{name: "enrollments: all", args: []string{"enrollments", "-all"}, wantErrStr: "Erreur HTTP: 403"},
	})
}

func Test_commandLine_admin(t *testing.T) {
	cli := setup(t)
	cli.env.Login(t, testutil.AdminEmail)

	notes := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("Trimestre 2"), 0o600))

	cli.runTests(t, []cliTest{
		{name: "stats", args: []string{"stats", "-months", "2"}, wantOut: []string{
			"Utilisateurs: 7, actifs: 5 (71.4%), inactifs: 2 (28.6%)",
			"Formations: 3, cours: 3, chapitres: 3, inscriptions: 3",
			"Taux de réussite: 33.3%, moyenne: 14/20",
		}},
		{name: "stats-report: no recipient", args: []string{"stats-report"}, wantErr: errHelp},
		{name: "stats-report: invalid recipient", args: []string{"stats-report", "-to", "nope"}, wantErrStr: "mail: missing '@' or angle-addr"},
		{name: "stats-report", args: []string{"stats-report", "-to", "direction@masomo.cd"}, wantOut: []string{"Rapport envoyé à direction@masomo.cd"}},
		{name: "stats-report: attachment not found", args: []string{"stats-report", "-to", "direction@masomo.cd", "-attach", "nope.txt"}, wantErrStr: "open nope.txt: no such file or directory"},
		{name: "stats-report: with attachment", args: []string{"stats-report", "-to", "direction@masomo.cd", "-attach", notes}, wantOut: []string{"Rapport envoyé"}},
		{name: "enrollments: all", args: []string{"enrollments", "-all"}, wantOut: []string{"Physique avancée"}},
	})

	sent := cli.mailer.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, "direction@masomo.cd", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "Utilisateurs : 7")
	require.Len(t, sent[0].Attachments, 1)
	assert.Equal(t, stats.MonthlyCSVName, sent[0].Attachments[0].Filename)

	require.Len(t, sent[1].Attachments, 2)
	assert.Equal(t, "notes.txt", sent[1].Attachments[1].Filename)
	assert.Equal(t, "text/plain; charset=utf-8", sent[1].Attachments[1].ContentType)
}
