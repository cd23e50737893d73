package core

import "testing"

func TestPriority_Order(t *testing.T) {
	order := Priorities()
	if len(order) != priorityLevels {
		t.Fatalf("Priorities() returned %d levels, want %d", len(order), priorityLevels)
	}
	if order[0] != MinValue || order[len(order)-1] != MaxValue {
		t.Errorf("Priorities() bounds = %v..%v", order[0], order[len(order)-1])
	}
	if PrioritySystemIdle != 0 || PrioritySend != 9 || PriorityNormal != 8 {
		t.Errorf("unexpected numeric levels: idle=%d normal=%d send=%d",
			PrioritySystemIdle, PriorityNormal, PrioritySend)
	}
	if PriorityInvalid.Valid() || Priority(10).Valid() {
		t.Error("out of range priority reported valid")
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{in: "normal", want: PriorityNormal},
		{in: "DataBind", want: PriorityDataBind},
		{in: "data-bind", want: PriorityDataBind},
		{in: " system_idle ", want: PrioritySystemIdle},
		{in: "9", want: PrioritySend},
		{in: "0", want: PrioritySystemIdle},
		{in: "10", want: PriorityInvalid, wantErr: true},
		{in: "urgent", want: PriorityInvalid, wantErr: true},
		{in: "", want: PriorityInvalid, wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParsePriority(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePriority(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParsePriority(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPriority_String(t *testing.T) {
	if got := PriorityContextIdle.String(); got != "context_idle" {
		t.Errorf("String() = %q", got)
	}
	if got := Priority(42).String(); got != "priority(42)" {
		t.Errorf("String() = %q", got)
	}
}
