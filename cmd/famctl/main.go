// Command famctl administers a FamilySync database: migrations, backups and restores.
package main

func main() {
	Execute()
}
