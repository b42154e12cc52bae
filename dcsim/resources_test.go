package dcsim

import "testing"

func TestResourcesArithmetic(t *testing.T) {
	a := Resources{CPU: 4, RAM: 8, Disk: 100, Bandwidth: 1000, FPGA: 2}
	b := Resources{CPU: 1, RAM: 2, Disk: 10, Bandwidth: 100, FPGA: 1}

	sum := a.Add(b)
	want := Resources{CPU: 5, RAM: 10, Disk: 110, Bandwidth: 1100, FPGA: 3}
	if sum != want {
		t.Errorf("Add = %+v, want %+v", sum, want)
	}

	diff := a.Sub(b)
	want = Resources{CPU: 3, RAM: 6, Disk: 90, Bandwidth: 900, FPGA: 1}
	if diff != want {
		t.Errorf("Sub = %+v, want %+v", diff, want)
	}

	scaled := a.Scale(0.5)
	want = Resources{CPU: 2, RAM: 4, Disk: 50, Bandwidth: 500, FPGA: 1}
	if scaled != want {
		t.Errorf("Scale = %+v, want %+v", scaled, want)
	}
}

func TestResourcesDivByZeroYieldsZero(t *testing.T) {
	a := Resources{CPU: 4}
	zero := Resources{}
	got := a.Div(zero)
	if got != (Resources{}) {
		t.Errorf("Div by zero = %+v, want zero vector", got)
	}
}

func TestResourcesPercentOf(t *testing.T) {
	used := Resources{CPU: 2, RAM: 4, Disk: 50, Bandwidth: 500, FPGA: 0}
	total := Resources{CPU: 4, RAM: 8, Disk: 100, Bandwidth: 1000, FPGA: 0}
	pct := used.PercentOf(total)
	want := Resources{CPU: 50, RAM: 50, Disk: 50, Bandwidth: 50, FPGA: 0}
	if pct != want {
		t.Errorf("PercentOf = %+v, want %+v", pct, want)
	}
}

func TestMaxAxisRatio(t *testing.T) {
	used := Resources{CPU: 9, RAM: 1, Disk: 1, Bandwidth: 1, FPGA: 0}
	total := Resources{CPU: 10, RAM: 10, Disk: 10, Bandwidth: 10, FPGA: 1}
	got := used.MaxAxisRatio(total)
	if got != 0.9 {
		t.Errorf("MaxAxisRatio = %v, want 0.9", got)
	}
}

func TestFits(t *testing.T) {
	cases := []struct {
		name      string
		request   Resources
		available Resources
		want      bool
	}{
		{"exact fit", Resources{CPU: 4, RAM: 8, Disk: 100, Bandwidth: 1000}, Resources{CPU: 4, RAM: 8, Disk: 100, Bandwidth: 1000}, true},
		{"room to spare", Resources{CPU: 1}, Resources{CPU: 4, RAM: 8, Disk: 100, Bandwidth: 1000}, true},
		{"cpu overflow", Resources{CPU: 5}, Resources{CPU: 4, RAM: 8, Disk: 100, Bandwidth: 1000}, false},
		{"fpga overflow", Resources{FPGA: 1}, Resources{FPGA: 0}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Fits(tc.request, tc.available); got != tc.want {
				t.Errorf("Fits(%+v, %+v) = %v, want %v", tc.request, tc.available, got, tc.want)
			}
		})
	}
}
