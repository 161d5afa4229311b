package models

type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Student struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Section   *Ref   `json:"section,omitempty"`
	ArtGroup  *Ref   `json:"artGroup,omitempty"`
}

func (s Student) FullName() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

type Parent struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	Email     string    `json:"email"`
	Students  []Student `json:"students"`
}

// Owns reports whether studentID belongs to the parent.
func (p Parent) Owns(studentID string) (Student, bool) {
	for _, s := range p.Students {
		if s.ID == studentID {
			return s, true
		}
	}
	return Student{}, false
}

type TimetableEntry struct {
	ID        string `json:"id"`
	Day       string `json:"day"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Room      string `json:"room,omitempty"`
	Subject   string `json:"subject"`
	ShortName string `json:"shortName,omitempty"`
	Color     string `json:"color,omitempty"`
	Teacher   string `json:"teacher,omitempty"`
}

type Timetable struct {
	Student  Student          `json:"student"`
	Academic []TimetableEntry `json:"academic"`
	Art      []TimetableEntry `json:"art"`
	Teachers []Ref            `json:"teachers"`
}

type SeatReservation struct {
	ID          string `json:"id"`
	StudentID   string `json:"studentId"`
	SectionName string `json:"sectionName,omitempty"`
	SchoolYear  string `json:"schoolYear"`
	Confirm     string `json:"confirm"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

type Textbook struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Author  string `json:"author,omitempty"`
	FileURL string `json:"fileUrl,omitempty"`
	Cover   *Image `json:"cover,omitempty"`
	Grade   *Ref   `json:"grade,omitempty"`
	Subject *Ref   `json:"subject,omitempty"`
	Section *Ref   `json:"section,omitempty"`
}

type Library struct {
	Page[Textbook]
	Grades   []Ref `json:"grades"`
	Subjects []Ref `json:"subjects"`
}
