package model

// Program is a degree program such as B.Tech or MBA.
type Program struct {
    ID   uint64 // programs.id
    Code string // programs.code
    Name string // programs.name
}

// ProgramBranch is a branch offered under a program.  The branch code is
// embedded in enrollment ids, so it is short and upper case (CSE, ECE).
type ProgramBranch struct {
    ID        uint64 // program_branches.id
    ProgramID uint64 // program_branches.program_id
    Code      string // program_branches.branch_code
    Name      string // program_branches.name
}
