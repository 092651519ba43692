package triad

import (
	"bufio"
	"io"
	"math"
	"os"
	"strconv"

	log "github.com/golang/glog"
	"github.com/pkg/errors"

	"lp_colgen/src/model"
)

func formatNumber(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type lpWriter struct {
	w   *bufio.Writer
	m   *Model
	err error
}

func (lw *lpWriter) str(s string) {
	if lw.err == nil {
		_, lw.err = lw.w.WriteString(s)
	}
}

func (lw *lpWriter) terms(cells []Cell) {
	if len(cells) == 0 {
		lw.str("0")
		return
	}
	for k, c := range cells {
		coef := c.Coefficient
		if k != 0 {
			if coef < 0 {
				lw.str(" - ")
			} else {
				lw.str(" + ")
			}
			coef = math.Abs(coef)
		}
		if coef != 1 {
			if coef == -1 {
				lw.str("-")
			} else {
				lw.str(formatNumber(coef) + " ")
			}
		}
		lw.str(lw.m.Variables[c.Col].Name)
	}
}

// quadratic writes the objective block [ ... ] / 2, so coefficients are
// doubled.
func (lw *lpWriter) quadratic(cells []QuadraticCell) {
	if len(cells) == 0 {
		return
	}
	lw.str(" + [ ")
	for k, q := range cells {
		coef := 2 * q.Coefficient
		switch {
		case k == 0 && coef < 0:
			lw.str("-")
		case k != 0 && coef < 0:
			lw.str(" - ")
		case k != 0:
			lw.str(" + ")
		}
		lw.str(formatNumber(math.Abs(coef)) + " ")
		if q.Row == q.Col {
			lw.str(lw.m.Variables[q.Col].Name + " ^ 2")
		} else {
			lw.str(lw.m.Variables[q.Row].Name + " * " + lw.m.Variables[q.Col].Name)
		}
	}
	lw.str(" ] / 2")
}

// WriteLP writes the model in LP file format.
func (m *Model) WriteLP(w io.Writer) error {
	lw := &lpWriter{w: bufio.NewWriter(w), m: m}

	lw.str(m.Objective.Category.String() + "\n obj: ")
	obj := make([]Cell, 0, len(m.Objective.Coefficients))
	for j, c := range m.Objective.Coefficients {
		if c != 0 {
			obj = append(obj, Cell{Col: j, Coefficient: c})
		}
	}
	lw.terms(obj)
	lw.quadratic(m.Objective.Quadratic)
	if c := m.Objective.Constant; c > 0 {
		lw.str(" + " + formatNumber(c))
	} else if c < 0 {
		lw.str(" - " + formatNumber(-c))
	}
	lw.str("\n\nSubject To\n")
	for i := 0; i < m.Constraints.Len(); i++ {
		lw.str(" " + m.Constraints.Names[i] + ": ")
		lw.terms(m.Constraints.Row(i))
		lw.str(" " + m.Constraints.Signs[i].String() + " " + formatNumber(m.Constraints.RHS[i]) + "\n")
	}

	lw.str("\nBounds\n")
	for _, v := range m.Variables {
		lowerInf, upperInf := IsNegativeInfinity(v.Lower), IsPositiveInfinity(v.Upper)
		switch {
		case lowerInf && upperInf:
			lw.str(" " + v.Name + " free\n")
		case lowerInf:
			lw.str(" -inf <= " + v.Name + " <= " + formatNumber(v.Upper) + "\n")
		case upperInf:
			lw.str(" " + v.Name + " >= " + formatNumber(v.Lower) + "\n")
		case v.Lower == v.Upper:
			lw.str(" " + v.Name + " = " + formatNumber(v.Lower) + "\n")
		default:
			lw.str(" " + formatNumber(v.Lower) + " <= " + v.Name + " <= " + formatNumber(v.Upper) + "\n")
		}
	}

	generals, binaries := make([]string, 0), make([]string, 0)
	for _, v := range m.Variables {
		switch v.Domain {
		case model.Binary:
			binaries = append(binaries, v.Name)
		case model.Integer:
			generals = append(generals, v.Name)
		}
	}
	if len(generals) > 0 {
		lw.str("\nGenerals\n")
		for _, name := range generals {
			lw.str(" " + name + "\n")
		}
	}
	if len(binaries) > 0 {
		lw.str("\nBinaries\n")
		for _, name := range binaries {
			lw.str(" " + name + "\n")
		}
	}
	lw.str("\nEnd\n")

	if lw.err != nil {
		return lw.err
	}
	return lw.w.Flush()
}

// ExportLP writes the model to path.
func (m *Model) ExportLP(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "export")
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return errors.Wrapf(m.WriteLP(f), "export %s", path)
}

// ExportAsync writes a snapshot of the model in the background. The model
// may be modified or released as soon as ExportAsync returns. Failures are
// logged and also sent on the returned channel, which nobody has to read.
func (m *Model) ExportAsync(path string) <-chan error {
	snapshot := m.Clone()
	done := make(chan error, 1)
	go func() {
		err := snapshot.ExportLP(path)
		if err != nil {
			log.Warningf("background export of %s failed: %v", snapshot.Name, err)
		} else {
			log.V(2).Infof("exported %s to %s", snapshot.Name, path)
		}
		done <- err
		close(done)
	}()
	return done
}
