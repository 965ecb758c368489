// Command taskbatch schedules dependent tasks into parallel batches and runs them.
package main

func main() {
	Execute()
}
