package sandboxapi

import (
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/core/category"
	"github.com/trezcool/masomo-portal/core/chapter"
	"github.com/trezcool/masomo-portal/core/course"
	"github.com/trezcool/masomo-portal/core/enrollment"
	"github.com/trezcool/masomo-portal/core/evaluation"
	"github.com/trezcool/masomo-portal/core/formation"
	"github.com/trezcool/masomo-portal/core/profile"
	"github.com/trezcool/masomo-portal/storage/inmem"
)

// SeedPassword is the password of every seeded user.
const SeedPassword = "password"

type User struct {
	ID           int
	Name         string
	Email        string
	Role         string
	PasswordHash []byte
	Phone        string
	Level        string
	Speciality   string
	LastLoginAt  time.Time
	CreatedAt    time.Time
}

func (u User) AuthUser() auth.User {
	return auth.User{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		LastLoginAt: core.NewTime(u.LastLoginAt),
		CreatedAt:   core.NewTime(u.CreatedAt),
	}
}

func (u User) Profile() profile.Profile {
	return profile.Profile{
		ID:          u.ID,
		UserID:      null.IntFrom(u.ID),
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Phone:       null.NewString(u.Phone, u.Phone != ""),
		Level:       null.NewString(u.Level, u.Level != ""),
		Speciality:  null.NewString(u.Speciality, u.Speciality != ""),
		LastLoginAt: core.NewTime(u.LastLoginAt),
		CreatedAt:   core.NewTime(u.CreatedAt),
	}
}

func (u User) IsAdmin() bool { return u.Role == auth.RoleAdmin || u.Role == auth.RoleSuperAdmin }

type chapterRead struct {
	ID        int
	ChapterID int
	UserID    int
}

type evaluationRow struct {
	ID int
	evaluation.Evaluation
}

// DB is the sandbox database.
type DB struct {
	Users       *inmem.Table[User]
	Categories  *inmem.Table[category.Category]
	Formations  *inmem.Table[formation.Formation]
	Courses     *inmem.Table[course.Course]
	Chapters    *inmem.Table[chapter.Chapter]
	Enrollments *inmem.Table[enrollment.Enrollment]
	Evaluations *inmem.Table[evaluationRow]
	reads       *inmem.Table[chapterRead]
}

func NewDB() *DB {
	return &DB{
		Users:       inmem.NewTable(func(u *User, pk int) { u.ID = pk }),
		Categories:  inmem.NewTable(func(c *category.Category, pk int) { c.ID = pk }),
		Formations:  inmem.NewTable(func(f *formation.Formation, pk int) { f.ID = pk }),
		Courses:     inmem.NewTable(func(c *course.Course, pk int) { c.ID = pk }),
		Chapters:    inmem.NewTable(func(c *chapter.Chapter, pk int) { c.ID = pk }),
		Enrollments: inmem.NewTable(func(e *enrollment.Enrollment, pk int) { e.ID = pk }),
		Evaluations: inmem.NewTable(func(e *evaluationRow, pk int) { e.ID = pk }),
		reads:       inmem.NewTable(func(r *chapterRead, pk int) { r.ID = pk }),
	}
}

func (db *DB) Reset() {
	db.Users.Reset()
	db.Categories.Reset()
	db.Formations.Reset()
	db.Courses.Reset()
	db.Chapters.Reset()
	db.Enrollments.Reset()
	db.Evaluations.Reset()
	db.reads.Reset()
}

func (db *DB) CreateUser(name, email, role, password string, cost int, createdAt time.Time) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return User{}, err
	}
	return db.Users.Insert(User{
		Name:         name,
		Email:        core.CleanString(email, true /* lower */),
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    createdAt,
	}), nil
}

func (db *DB) UserByEmail(email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	return db.Users.Find(func(u User) bool { return u.Email == email })
}

func (db *DB) isRead(chapterID, userID int) bool {
	return db.reads.Count(func(r chapterRead) bool { return r.ChapterID == chapterID && r.UserID == userID }) > 0
}

func (db *DB) markRead(chapterID, userID int) {
	if !db.isRead(chapterID, userID) {
		db.reads.Insert(chapterRead{ChapterID: chapterID, UserID: userID})
	}
}

func (db *DB) findEvaluation(courseID, studentID int) (evaluationRow, error) {
	return db.Evaluations.Find(func(e evaluationRow) bool {
		return e.CourseID == courseID && e.StudentID == studentID
	})
}

// Seed fills the database with deterministic demo data relative to `now`.
func (db *DB) Seed(now time.Time, cost int) error {
	day := 24 * time.Hour
	thisMonth := time.Date(now.Year(), now.Month(), 1, 9, 0, 0, 0, now.Location())

	users := []struct {
		name, email, role string
		lastLogin         time.Time
		createdAt         time.Time
		level, speciality string
	}{
		{"Admin Masomo", "admin@masomo.cd", auth.RoleAdmin, now.Add(-time.Minute), now.AddDate(-1, 0, 0), "", ""},
		{"Direction", "direction@masomo.cd", auth.RoleSuperAdmin, now.Add(-3 * day), now.AddDate(-1, 0, 0), "", ""},
		{"Awa Mbuyi", "awa@masomo.cd", auth.RoleTeacher, now.Add(-2 * day), now.AddDate(0, -6, 0), "", "Mathématiques"},
		{"Patrice Lumumba", "patrice@masomo.cd", auth.RoleTeacher, now.Add(-45 * day), now.AddDate(0, -4, 0), "", "Histoire"},
		{"Jean Kabila", "jean@masomo.cd", auth.RoleStudent, now.Add(-10 * day), thisMonth, "6e", ""},
		{"Grace Ilunga", "grace@masomo.cd", auth.RoleStudent, now.Add(-1 * day), now.AddDate(0, -2, 0), "5e", ""},
		{"Marie Tshala", "marie@masomo.cd", auth.RoleStudent, time.Time{}, thisMonth, "6e", ""},
	}
	for _, u := range users {
		usr, err := db.CreateUser(u.name, u.email, u.role, SeedPassword, cost, u.createdAt)
		if err != nil {
			return err
		}
		_, _ = db.Users.Update(usr.ID, func(row *User) {
			row.LastLoginAt = u.lastLogin
			row.Level = u.level
			row.Speciality = u.speciality
		})
	}

	sciences := db.Categories.Insert(category.Category{Nom: "Sciences", Description: null.StringFrom("Mathématiques, physique et chimie")})
	langues := db.Categories.Insert(category.Category{Nom: "Langues"})
	db.Categories.Insert(category.Category{Nom: "Histoire"})

	maths := db.Formations.Insert(formation.Formation{
		Title: "Mathématiques de base", CategoryID: null.IntFrom(sciences.ID),
		Price: 0, DurationHours: 40, DifficultyLevel: formation.LevelBeginner, CreatedAt: core.NewTime(now.AddDate(0, -5, 0)),
	})
	physique := db.Formations.Insert(formation.Formation{
		Title: "Physique avancée", CategoryID: null.IntFrom(sciences.ID),
		Price: 25, DurationHours: 60, DifficultyLevel: formation.LevelAdvanced, CreatedAt: core.NewTime(now.AddDate(0, -3, 0)),
	})
	db.Formations.Insert(formation.Formation{
		Title: "Français écrit", CategoryID: null.IntFrom(langues.ID),
		Price: 10, DurationHours: 30, DifficultyLevel: formation.LevelIntermediate, CreatedAt: core.NewTime(now.AddDate(0, -1, 0)),
	})

	const teacherID = 3
	algebre := db.Courses.Insert(course.Course{
		Title: "Algèbre", Description: null.StringFrom("Équations du premier degré"),
		FormationID: null.IntFrom(maths.ID), CategoryID: null.IntFrom(sciences.ID), TeacherID: null.IntFrom(teacherID),
		CreatedAt: core.NewTime(now.AddDate(0, -5, 0)),
	})
	db.Courses.Insert(course.Course{
		Title: "Géométrie", FormationID: null.IntFrom(maths.ID), CategoryID: null.IntFrom(sciences.ID), TeacherID: null.IntFrom(teacherID),
		CreatedAt: core.NewTime(now.AddDate(0, -4, 0)),
	})
	db.Courses.Insert(course.Course{
		Title: "Mécanique", FormationID: null.IntFrom(physique.ID), CategoryID: null.IntFrom(sciences.ID), TeacherID: null.IntFrom(4),
		CreatedAt: core.NewTime(now.AddDate(0, -2, 0)),
	})

	for i, title := range []string{"Introduction", "Les inconnues", "Résolution"} {
		db.Chapters.Insert(chapter.Chapter{
			CourseID: algebre.ID, Titre: title, OrderIndex: i + 1, DurationMinutes: 30 + 15*i,
			ContentPath: null.StringFrom(fmt.Sprintf("/storage/chapters/algebre-%d.pdf", i+1)),
		})
	}

	db.Enrollments.Insert(enrollment.Enrollment{FormationID: maths.ID, UserID: null.IntFrom(5), Status: enrollment.StatusActive, EnrolledAt: core.NewTime(now.Add(-9 * day))})
	db.Enrollments.Insert(enrollment.Enrollment{FormationID: maths.ID, UserID: null.IntFrom(6), Status: enrollment.StatusCompleted, EnrolledAt: core.NewTime(now.AddDate(0, -2, 0))})
	db.Enrollments.Insert(enrollment.Enrollment{FormationID: physique.ID, UserID: null.IntFrom(6), Status: enrollment.StatusActive, EnrolledAt: core.NewTime(now.AddDate(0, -1, 0))})

	db.Evaluations.Insert(evaluationRow{Evaluation: evaluation.Evaluation{
		CourseID: algebre.ID, StudentID: 6, Grade: 14, Comment: "Bon travail", EvaluatedAt: core.NewTime(now.Add(-5 * day)),
	}})
	db.markRead(1, 6)
	return nil
}
